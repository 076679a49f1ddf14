package batch

import (
	"fmt"
	"sync"
)

// State is the lifecycle position of a batch run
type State string

const (
	StatePending         State = "pending"
	StateDownloading     State = "downloading"
	StateProcessing      State = "processing"
	StateDone            State = "done"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StatePending:     {StateDownloading},
	StateDownloading: {StateProcessing, StateFailed},
	StateProcessing:  {StateDone, StatePartiallyFailed, StateFailed},
}

// Terminal reports whether no further transitions are allowed
func (s State) Terminal() bool {
	return s == StateDone || s == StatePartiallyFailed || s == StateFailed
}

// tracker enforces the batch state machine
type tracker struct {
	mu    sync.Mutex
	state State
}

func newTracker() *tracker {
	return &tracker{state: StatePending}
}

func (t *tracker) current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *tracker) to(next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, allowed := range transitions[t.state] {
		if allowed == next {
			t.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid batch transition %s -> %s", t.state, next)
}
