// Package progress drives classification work through discrete observable
// steps. One execution runs at a time; every step publishes a State to the
// subscribed observers so a presentation layer can redraw between steps.
package progress

const (
	StatusReady    = "Ready"
	StatusAnalyze  = "Analyzing email..."
	StatusBatch    = "Processing emails... Please wait."
	StatusComplete = "Analysis complete"
)

// State is the observable progress of the current execution.
// 0 <= Current <= Maximum always holds; Done is set only on the terminal
// state of a successful execution.
type State struct {
	Current int    `json:"current"`
	Maximum int    `json:"maximum"`
	Status  string `json:"status"`
	Done    bool   `json:"done"`
}

func Idle() State {
	return State{Status: StatusReady}
}

// Fraction is Current/Maximum in [0,1]; 0 when Maximum is 0.
func (s State) Fraction() float64 {
	if s.Maximum <= 0 {
		return 0
	}
	return float64(s.Current) / float64(s.Maximum)
}

type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is published for every step and once more for the terminal outcome.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	State       State     `json:"state"`
	Message     string    `json:"message,omitempty"`
	Err         error     `json:"-"`
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
