package overlay

import "time"

// State is where a post sits in its analysis lifecycle.
type State int

const (
	Untouched State = iota
	TriggerAttached
	Analyzing
	ResultShown
)

func (s State) String() string {
	switch s {
	case TriggerAttached:
		return "trigger_attached"
	case Analyzing:
		return "analyzing"
	case ResultShown:
		return "result_shown"
	default:
		return "untouched"
	}
}

// pending is the one outstanding request a post may have.
type pending struct {
	requestID string
	// timer expires the request; it runs from activation.
	timer *time.Timer
}

func (p *pending) stop() {
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Snapshot is a copy of the overlay's bookkeeping.
type Snapshot struct {
	States map[string]State
	// Pending maps post ids to their outstanding request id.
	Pending map[string]string
}
