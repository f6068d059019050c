package wizard

// NavigateRequest moves the wizard between steps.
type NavigateRequest struct {
	Action string `json:"action"` // next | previous | jump
	Step   int    `json:"step"`   // target index for jump
}

// AutofillRequest triggers auto-population from an approval record.
type AutofillRequest struct {
	ApprovalID int64 `json:"approval_id"`
}

// StepView names one step for the client's progress rail.
type StepView struct {
	Key   StepKey `json:"key"`
	Index int     `json:"index"`
}

// StateView is the wizard state returned to the client after every
// mutation.
type StateView struct {
	CurrentStep    int             `json:"current_step"`
	CurrentStepKey StepKey         `json:"current_step_key"`
	CompletedSteps []int           `json:"completed_steps"`
	InvalidSteps   []int           `json:"invalid_steps"`
	ReadyToSubmit  bool            `json:"ready_to_submit"`
	Steps          []StepView      `json:"steps"`
	Draft          OrderDraft      `json:"draft"`
	ProductOptions []ProductOption `json:"product_options"`
}

// NewStateView projects a session for the client.
func NewStateView(sess *Session) StateView {
	steps := make([]StepView, 0, StepCount)
	for i, key := range Steps() {
		steps = append(steps, StepView{Key: key, Index: i})
	}
	return StateView{
		CurrentStep:    sess.State.CurrentStep,
		CurrentStepKey: sess.CurrentStepKey(),
		CompletedSteps: sess.State.CompletedSteps.Indices(),
		InvalidSteps:   sess.State.InvalidSteps.Indices(),
		ReadyToSubmit:  sess.ReadyToSubmit(),
		Steps:          steps,
		Draft:          sess.Draft,
		ProductOptions: sess.ProductOptions,
	}
}
