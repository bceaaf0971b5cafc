package ml

import (
	"fmt"
)

const (
	ModelLogisticRegression = "logistic_regression"
	ModelDecisionTree       = "decision_tree"
)

func LoadModel(modelType, path string) (Model, error) {
	var model Model
	switch modelType {
	case ModelLogisticRegression, "":
		model = &LogisticRegression{}
	case ModelDecisionTree:
		model = &DecisionTree{}
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
	if err := model.Load(path); err != nil {
		return nil, err
	}
	return model, nil
}
