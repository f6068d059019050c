package wizard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("sess-1", NewRegistry())
}

// completeDraft fills every step of the session with valid data.
func completeDraft(t *testing.T, sess *Session) {
	t.Helper()
	productID := int64(42)
	require.True(t, sess.SetOrderDetails(OrderDetails{
		ProductID:      &productID,
		ProductionType: ProductionInHouse,
		Quantity:       500,
		Priority:       PriorityMedium,
	}).Valid)
	require.True(t, sess.SetScheduling(Scheduling{
		PlannedStartDate: "2024-02-01",
		PlannedEndDate:   "2024-02-20",
		Shift:            ShiftGeneral,
	}).Valid)
	require.True(t, sess.SetMaterials(Materials{Items: []MaterialItem{
		{Description: "Cotton Single Jersey", RequiredQuantity: 260, Unit: "kg", Status: MaterialAvailable},
	}}).Valid)
	require.True(t, sess.SetQuality(Quality{Checkpoints: []QualityCheckpoint{
		{Name: "Measurement check", Frequency: FrequencyPerBatch, AcceptanceCriteria: "within tolerance"},
	}}).Valid)
	require.True(t, sess.SetTeam(Team{}).Valid)
	require.True(t, sess.SetCustomization(Customization{}).Valid)
	require.True(t, sess.SetReview(Review{Acknowledge: true}).Valid)
}

func TestSetStepMovesBetweenCompletedAndInvalid(t *testing.T) {
	sess := newTestSession(t)
	idx := StepScheduling.Index()

	res := sess.SetScheduling(Scheduling{PlannedStartDate: "2024-02-01"})
	require.False(t, res.Valid)
	require.True(t, sess.State.InvalidSteps.Has(idx))
	require.False(t, sess.State.CompletedSteps.Has(idx))

	res = sess.SetScheduling(Scheduling{
		PlannedStartDate: "2024-02-01",
		PlannedEndDate:   "2024-02-20",
		Shift:            ShiftGeneral,
	})
	require.True(t, res.Valid)
	require.True(t, sess.State.CompletedSteps.Has(idx))
	require.False(t, sess.State.InvalidSteps.Has(idx))
}

func TestCompletedAndInvalidStayDisjoint(t *testing.T) {
	sess := newTestSession(t)
	completeDraft(t, sess)

	// Break one step and confirm no index appears in both sets.
	sess.SetMaterials(Materials{})

	for _, idx := range sess.State.CompletedSteps.Indices() {
		require.False(t, sess.State.InvalidSteps.Has(idx), "step %d in both sets", idx)
	}
	require.True(t, sess.State.InvalidSteps.Has(StepMaterials.Index()))
}

func TestSetStepDoesNotTouchOtherSteps(t *testing.T) {
	sess := newTestSession(t)
	completeDraft(t, sess)
	before := len(sess.State.CompletedSteps)

	sess.SetScheduling(Scheduling{PlannedStartDate: "bad"})

	require.Len(t, sess.State.CompletedSteps, before-1)
	require.Equal(t, []int{StepScheduling.Index()}, sess.State.InvalidSteps.Indices())
}

func TestUntouchedStepsAreInNeitherSet(t *testing.T) {
	sess := newTestSession(t)

	sess.SetOrderDetails(OrderDetails{})

	require.False(t, sess.State.CompletedSteps.Has(StepMaterials.Index()))
	require.False(t, sess.State.InvalidSteps.Has(StepMaterials.Index()))
}

func TestEnablingCustomStagesSeedsDefaults(t *testing.T) {
	sess := newTestSession(t)

	res := sess.SetCustomization(Customization{UseCustomStages: true})

	require.True(t, res.Valid)
	stages := sess.Draft.Customization.Stages
	require.Len(t, stages, len(DefaultStageNames))
	for i, name := range DefaultStageNames {
		require.Equal(t, name, stages[i].Name)
	}
	require.True(t, stages[2].IsEmbroidery)
	require.True(t, stages[3].IsPrinting)
	require.False(t, stages[0].IsPrinting)
}

func TestDisablingCustomStagesClearsList(t *testing.T) {
	sess := newTestSession(t)
	sess.SetCustomization(Customization{UseCustomStages: true})
	require.NotEmpty(t, sess.Draft.Customization.Stages)

	sess.SetCustomization(Customization{UseCustomStages: false, Stages: sess.Draft.Customization.Stages})

	require.Empty(t, sess.Draft.Customization.Stages)
}

func TestCustomStageListIsKeptWhenProvided(t *testing.T) {
	sess := newTestSession(t)
	vendorID := int64(9)

	sess.SetCustomization(Customization{
		UseCustomStages: true,
		Stages: []CustomStage{
			{Name: "Cutting"},
			{Name: "Embroidery", IsEmbroidery: true, Outsourced: true, VendorID: &vendorID},
		},
	})

	require.Len(t, sess.Draft.Customization.Stages, 2)
}

func TestCustomizationTypeDerivation(t *testing.T) {
	require.Equal(t, "both", CustomStage{IsPrinting: true, IsEmbroidery: true}.CustomizationType())
	require.Equal(t, "printing", CustomStage{IsPrinting: true}.CustomizationType())
	require.Equal(t, "embroidery", CustomStage{IsEmbroidery: true}.CustomizationType())
	require.Equal(t, "none", CustomStage{}.CustomizationType())
}

func TestMergeProductOptionDeduplicatesByID(t *testing.T) {
	sess := newTestSession(t)

	sess.MergeProductOption(ProductOption{ID: 1, Code: "TS-001", Name: "Classic Crew T-Shirt"})
	sess.MergeProductOption(ProductOption{ID: 1, Code: "TS-001", Name: "Renamed"})
	sess.MergeProductOption(ProductOption{ID: 2, Code: "HD-020", Name: "Pullover Hoodie"})

	require.Len(t, sess.ProductOptions, 2)
	require.Equal(t, "Classic Crew T-Shirt", sess.ProductOptions[0].Name)
}
