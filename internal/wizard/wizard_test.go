package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petermazzocco/go-order-wizard/internal/imaging"
	"github.com/petermazzocco/go-order-wizard/models"
)

func photo(name string) imaging.File {
	return imaging.File{Name: name, ContentType: "image/png", Data: []byte(name)}
}

// filledWizard returns a wizard on the photos step with every field set.
func filledWizard(t *testing.T, images ...imaging.File) *Wizard {
	t.Helper()
	w := New(TipRecompute)
	values := map[Step]string{
		StepName:         "Ada Lovelace",
		StepPhone:        "555-0100",
		StepAddress:      "1 Loop St",
		StepInstructions: "Ring twice",
		StepTotalCost:    "100.00",
	}
	for step := FirstStep; step < StepTip; step++ {
		require.NoError(t, w.Set(step, values[step]))
		require.NoError(t, w.Next())
	}
	require.NoError(t, w.Next())
	require.NoError(t, w.AddImages(images...))
	require.Equal(t, StepImages, w.Step())
	return w
}

func TestStepNames(t *testing.T) {
	for s := FirstStep; s <= LastStep; s++ {
		parsed, err := ParseStep(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStep("coupon")
	assert.Error(t, err)
	assert.Equal(t, 7, StepCount)
	assert.Equal(t, "delivery_instructions", StepInstructions.String())
}

func TestNextRequiresCompleteStep(t *testing.T) {
	w := New(TipRecompute)
	assert.ErrorIs(t, w.Next(), ErrIncompleteStep)
	assert.Equal(t, StepName, w.Step())

	require.NoError(t, w.Set(StepName, "   "))
	assert.ErrorIs(t, w.Next(), ErrIncompleteStep)

	require.NoError(t, w.Set(StepName, "Ada"))
	require.NoError(t, w.Next())
	assert.Equal(t, StepPhone, w.Step())
}

func TestBackClampsAtFirstStep(t *testing.T) {
	w := New(TipRecompute)
	w.Back()
	assert.Equal(t, StepName, w.Step())

	require.NoError(t, w.Set(StepName, "Ada"))
	require.NoError(t, w.Next())
	w.Back()
	assert.Equal(t, StepName, w.Step())
}

func TestNextClampsAtLastStep(t *testing.T) {
	w := filledWizard(t, photo("a.png"), photo("b.png"))
	require.NoError(t, w.Next())
	assert.Equal(t, StepImages, w.Step())
}

func TestTotalCostGate(t *testing.T) {
	w := New(TipRecompute)
	assert.False(t, w.CanProceed(StepTotalCost))

	require.NoError(t, w.Set(StepTotalCost, "abc"))
	assert.False(t, w.CanProceed(StepTotalCost))

	require.NoError(t, w.Set(StepTotalCost, "-5"))
	assert.False(t, w.CanProceed(StepTotalCost))

	require.NoError(t, w.Set(StepTotalCost, "12.50"))
	assert.True(t, w.CanProceed(StepTotalCost))
	assert.True(t, w.CanProceed(StepTip))
}

func TestTipDerivedFromTotalCost(t *testing.T) {
	w := New(TipRecompute)
	require.NoError(t, w.Set(StepTotalCost, "100.00"))
	assert.Equal(t, "15.00", w.Fields().Tip)

	require.NoError(t, w.Set(StepTotalCost, ""))
	assert.Equal(t, "", w.Fields().Tip)
}

func TestRecomputePolicyOverwritesManualTip(t *testing.T) {
	w := New(TipRecompute)
	require.NoError(t, w.Set(StepTotalCost, "100"))
	require.NoError(t, w.Set(StepTip, "20"))
	require.NoError(t, w.Set(StepTotalCost, "40"))
	assert.Equal(t, "6.00", w.Fields().Tip)
}

func TestKeepManualPolicyPreservesEditedTip(t *testing.T) {
	w := New(TipKeepManual)
	require.NoError(t, w.Set(StepTotalCost, "100"))
	assert.Equal(t, "15.00", w.Fields().Tip)

	require.NoError(t, w.Set(StepTip, "20"))
	require.NoError(t, w.Set(StepTotalCost, "40"))
	assert.Equal(t, "20", w.Fields().Tip)

	tip, ok := w.SuggestedTip()
	assert.True(t, ok)
	assert.Equal(t, "6.00", tip)
}

func TestParseTipPolicy(t *testing.T) {
	p, err := ParseTipPolicy("keep-manual")
	require.NoError(t, err)
	assert.Equal(t, TipKeepManual, p)

	p, err = ParseTipPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TipRecompute, p)

	_, err = ParseTipPolicy("generous")
	assert.Error(t, err)
}

func TestImagesGateAndRemoval(t *testing.T) {
	w := filledWizard(t, photo("a.png"))
	assert.False(t, w.CanProceed(StepImages))

	require.NoError(t, w.AddImages(photo("b.png"), photo("c.png")))
	assert.True(t, w.CanProceed(StepImages))

	require.NoError(t, w.RemoveImage(0))
	names := []string{}
	for _, img := range w.Images() {
		names = append(names, img.Name)
	}
	assert.Equal(t, []string{"b.png", "c.png"}, names)
	assert.ErrorIs(t, w.RemoveImage(5), ErrImageIndex)
}

func TestSetRejectsImagesStep(t *testing.T) {
	assert.ErrorIs(t, New(TipRecompute).Set(StepImages, "x"), ErrNotATextStep)
}

func TestPrefillUsesNonEmptyProfileValues(t *testing.T) {
	name, empty, addr := "Ada", "", "1 Loop St"
	w := New(TipRecompute)
	require.NoError(t, w.Set(StepPhone, "typed"))
	w.Prefill(&models.UserProfile{FullName: &name, PhoneNumber: &empty, Address: &addr})

	f := w.Fields()
	assert.Equal(t, "Ada", f.Name)
	assert.Equal(t, "typed", f.Phone)
	assert.Equal(t, "1 Loop St", f.Address)
	assert.Equal(t, "", f.DeliveryInstructions)

	w.Prefill(nil)
}

func TestValidate(t *testing.T) {
	w := filledWizard(t, photo("a.png"), photo("b.png"))
	order, err := w.Validate()
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", order.Name)
	assert.Equal(t, 100.0, order.TotalCost)
	require.NotNil(t, order.Tip)
	assert.InDelta(t, 15.0, *order.Tip, 0.001)
	assert.Len(t, order.Images, 2)
}

func TestValidateErrors(t *testing.T) {
	w := filledWizard(t, photo("a.png"))
	_, err := w.Validate()
	assert.ErrorIs(t, err, ErrTooFewImages)

	require.NoError(t, w.AddImages(photo("b.png")))
	require.NoError(t, w.Set(StepTip, "lots"))
	_, err = w.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepTip, verr.Step)

	require.NoError(t, w.Set(StepTip, ""))
	_, err = w.Validate()
	require.NoError(t, err)

	require.NoError(t, w.Set(StepAddress, " "))
	_, err = w.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepAddress, verr.Step)
	assert.Equal(t, "All fields except tip are required", verr.Error())
}

func TestSnapshot(t *testing.T) {
	w := filledWizard(t, photo("a.png"), photo("b.png"))
	snap := w.Snapshot()
	assert.Equal(t, "images", snap.Step)
	assert.Equal(t, 6, snap.StepIndex)
	assert.Equal(t, "Cart Photos", snap.StepTitle)
	assert.Equal(t, 7, snap.TotalSteps)
	assert.True(t, snap.CanSubmit)
	assert.Equal(t, "15.00", snap.SuggestedTip)
	require.Len(t, snap.Images, 2)
	assert.Equal(t, 5, snap.Images[0].Size)
}

func TestAddImagesEnforcesCountLimit(t *testing.T) {
	w := NewWithLimits(TipRecompute, Limits{MaxImages: 3})
	require.NoError(t, w.AddImages(photo("a.png"), photo("b.png")))

	err := w.AddImages(photo("c.png"), photo("d.png"))
	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Contains(t, err.Error(), "3 photos")
	assert.Len(t, w.Images(), 2)

	require.NoError(t, w.AddImages(photo("c.png")))
	assert.Len(t, w.Images(), 3)
}

func TestAddImagesEnforcesByteLimitAcrossRequests(t *testing.T) {
	big := func(name string) imaging.File {
		return imaging.File{Name: name, ContentType: "image/png", Data: make([]byte, 600<<10)}
	}
	w := NewWithLimits(TipRecompute, Limits{MaxBytes: 1 << 20})
	require.NoError(t, w.AddImages(big("a.png")))

	var limitErr *LimitError
	require.ErrorAs(t, w.AddImages(big("b.png")), &limitErr)
	assert.Len(t, w.Images(), 1)

	// Removing a photo frees its share of the budget.
	require.NoError(t, w.RemoveImage(0))
	require.NoError(t, w.AddImages(big("b.png")))
}
