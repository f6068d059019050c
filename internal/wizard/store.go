package wizard

import (
	"sort"

	"github.com/google/uuid"
)

// StepSet tracks step indices. The zero value is not usable; construct
// with NewStepSet.
type StepSet map[int]struct{}

// NewStepSet returns an empty set.
func NewStepSet(indices ...int) StepSet {
	s := make(StepSet, len(indices))
	for _, i := range indices {
		s.Add(i)
	}
	return s
}

// Add inserts an index.
func (s StepSet) Add(i int) { s[i] = struct{}{} }

// Remove deletes an index.
func (s StepSet) Remove(i int) { delete(s, i) }

// Has reports membership.
func (s StepSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Indices returns the members in ascending order.
func (s StepSet) Indices() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// WizardState is the transient navigation state of one wizard session.
// A step sits in CompletedSteps iff its schema currently validates and
// in InvalidSteps iff it currently fails; it is in neither only before
// its first evaluation.
type WizardState struct {
	CurrentStep    int
	CompletedSteps StepSet
	InvalidSteps   StepSet
}

// ProductOption is one entry in the session's product picker cache.
type ProductOption struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Session is one operator's in-flight wizard: the draft aggregate, the
// derived navigation state, and the product options the picker offers.
// It is single-owner and carries no locking. DraftID identifies this
// particular draft; it rotates every time the wizard is (re)started so
// guards keyed on it never outlive the draft.
type Session struct {
	ID             string
	DraftID        string
	Draft          OrderDraft
	State          WizardState
	ProductOptions []ProductOption

	registry *Registry
}

// NewSession creates an empty wizard session positioned at step 0.
func NewSession(id string, registry *Registry) *Session {
	return &Session{
		ID:      id,
		DraftID: uuid.NewString(),
		Draft:   NewOrderDraft(),
		State: WizardState{
			CurrentStep:    0,
			CompletedSteps: NewStepSet(),
			InvalidSteps:   NewStepSet(),
		},
		ProductOptions: []ProductOption{},
		registry:       registry,
	}
}

// Attach restores the registry after a session was decoded from storage.
func (s *Session) Attach(registry *Registry) { s.registry = registry }

// revalidate re-runs the owning step's schema and moves the step between
// the completed and invalid sets atomically.
func (s *Session) revalidate(step StepKey) StepResult {
	res := s.registry.Validate(step, &s.Draft)
	idx := step.Index()
	if res.Valid {
		s.State.InvalidSteps.Remove(idx)
		s.State.CompletedSteps.Add(idx)
	} else {
		s.State.CompletedSteps.Remove(idx)
		s.State.InvalidSteps.Add(idx)
	}
	return res
}

// SetOrderSelection replaces step 0 and re-validates it.
func (s *Session) SetOrderSelection(v OrderSelection) StepResult {
	s.Draft.OrderSelection = v
	return s.revalidate(StepOrderSelection)
}

// SetOrderDetails replaces step 1 and re-validates it.
func (s *Session) SetOrderDetails(v OrderDetails) StepResult {
	s.Draft.OrderDetails = v
	return s.revalidate(StepOrderDetails)
}

// SetScheduling replaces step 2 and re-validates it.
func (s *Session) SetScheduling(v Scheduling) StepResult {
	s.Draft.Scheduling = v
	return s.revalidate(StepScheduling)
}

// SetMaterials replaces step 3 and re-validates it.
func (s *Session) SetMaterials(v Materials) StepResult {
	if v.Items == nil {
		v.Items = []MaterialItem{}
	}
	s.Draft.Materials = v
	return s.revalidate(StepMaterials)
}

// SetQuality replaces step 4 and re-validates it.
func (s *Session) SetQuality(v Quality) StepResult {
	if v.Checkpoints == nil {
		v.Checkpoints = []QualityCheckpoint{}
	}
	s.Draft.Quality = v
	return s.revalidate(StepQuality)
}

// SetTeam replaces step 5 and re-validates it.
func (s *Session) SetTeam(v Team) StepResult {
	s.Draft.Team = v
	return s.revalidate(StepTeam)
}

// SetCustomization replaces step 6 and re-validates it. Disabling custom
// stages clears the list; enabling it with an empty list seeds the
// default sequence so the operator edits from a known baseline.
func (s *Session) SetCustomization(v Customization) StepResult {
	if !v.UseCustomStages {
		v.Stages = []CustomStage{}
	} else if len(v.Stages) == 0 {
		v.Stages = DefaultStages()
	}
	s.Draft.Customization = v
	return s.revalidate(StepCustomization)
}

// SetReview replaces step 7 and re-validates it.
func (s *Session) SetReview(v Review) StepResult {
	s.Draft.Review = v
	return s.revalidate(StepReview)
}

// MergeProductOption inserts a product into the picker cache unless an
// entry with the same id already exists.
func (s *Session) MergeProductOption(opt ProductOption) {
	for _, existing := range s.ProductOptions {
		if existing.ID == opt.ID {
			return
		}
	}
	s.ProductOptions = append(s.ProductOptions, opt)
}
