package wizard

import "time"

// State is the navigation snapshot of a wizard.
type State struct {
	ID          string    `json:"id"`
	Step        Step      `json:"step"`
	StepName    string    `json:"stepName"`
	Uploaded    bool      `json:"uploaded"`
	Processing  bool      `json:"processing"`
	CanNext     bool      `json:"canNext"`
	CanPrevious bool      `json:"canPrevious"`
	CanSave     bool      `json:"canSave"`
	Saved       bool      `json:"saved"`
	Committed   int       `json:"committed"`
	CreatedAt   time.Time `json:"createdAt"`
	LastActive  time.Time `json:"lastActive"`
}

// State returns the navigation snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		ID:          w.id,
		Step:        w.step,
		StepName:    w.step.String(),
		Uploaded:    w.uploaded,
		Processing:  w.processing,
		CanNext:     w.canNext(),
		CanPrevious: w.canPrevious(),
		CanSave:     w.canSave(),
		Saved:       w.batch != nil,
		Committed:   len(w.committed),
		CreatedAt:   w.created,
		LastActive:  w.touched,
	}
}
