package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DecisionTree is a binary CART tree stored as a flat node array; node 0 is
// the root. Trees are produced elsewhere and only evaluated here.
type DecisionTree struct {
	features int
	nodes    []TreeNode
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

type treeFile struct {
	Features int        `json:"features"`
	Nodes    []TreeNode `json:"nodes"`
}

// NewDecisionTree checks the node array before accepting it: children must
// point forward inside the array and split features must exist.
func NewDecisionTree(features int, nodes []TreeNode) (*DecisionTree, error) {
	if len(nodes) == 0 || features <= 0 {
		return nil, errors.New("decision tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= features {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(nodes) {
				return nil, fmt.Errorf("node %d: child %d out of range", i, child)
			}
		}
	}
	return &DecisionTree{features: features, nodes: nodes}, nil
}

func (dt *DecisionTree) Dim() int {
	return dt.features
}

func (dt *DecisionTree) Predict(x Vector) (int, error) {
	if len(dt.nodes) == 0 {
		return 0, ErrNotTrained
	}
	if x.Dim != dt.features {
		return 0, ErrDimensionMismatch
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if x.At(node.FeatureIdx) <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(treeFile{Features: dt.features, Nodes: dt.nodes})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file treeFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return err
	}
	tree, err := NewDecisionTree(file.Features, file.Nodes)
	if err != nil {
		return err
	}
	*dt = *tree
	return nil
}
