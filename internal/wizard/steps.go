package wizard

import "fmt"

// Step identifies one screen of the order wizard. Steps are visited in
// declaration order.
type Step int

const (
	StepName Step = iota
	StepPhone
	StepAddress
	StepInstructions
	StepTotalCost
	StepTip
	StepImages
)

// FirstStep and LastStep bound the wizard.
const (
	FirstStep = StepName
	LastStep  = StepImages
	StepCount = int(LastStep) + 1
)

var stepNames = [StepCount]string{
	"name",
	"phone",
	"address",
	"delivery_instructions",
	"total_cost",
	"tip",
	"images",
}

var stepTitles = [StepCount]string{
	"Your Name",
	"Phone Number",
	"Delivery Address",
	"Delivery Instructions",
	"Total Cost",
	"Tip Amount",
	"Cart Photos",
}

func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Title is the heading shown for the step.
func (s Step) Title() string {
	if !s.Valid() {
		return ""
	}
	return stepTitles[s]
}

// IsText reports whether the step collects a single text value.
func (s Step) IsText() bool {
	return s.Valid() && s != StepImages
}

func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("wizard: unknown step %q", name)
}

// next and prev are the transition function; both clamp at the ends.
func (s Step) next() Step {
	if s >= LastStep {
		return LastStep
	}
	return s + 1
}

func (s Step) prev() Step {
	if s <= FirstStep {
		return FirstStep
	}
	return s - 1
}
