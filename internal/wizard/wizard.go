// Package wizard implements the multi-step order form: a linear state
// machine that collects contact details, cost, tip and cart photos, and the
// pipeline that turns a finished wizard into a stored order.
package wizard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/petermazzocco/go-order-wizard/internal/imaging"
	"github.com/petermazzocco/go-order-wizard/internal/submissions"
	"github.com/petermazzocco/go-order-wizard/models"
)

const (
	MinImages = submissions.MinImages
	TipRate   = 0.15
)

// TipPolicy decides what happens to the tip when the total cost changes.
type TipPolicy int

const (
	// TipRecompute overwrites the tip with 15% of the new cost on every cost
	// change, including after the user typed a tip by hand.
	TipRecompute TipPolicy = iota
	// TipKeepManual recomputes only until the user edits the tip.
	TipKeepManual
)

func ParseTipPolicy(s string) (TipPolicy, error) {
	switch s {
	case "", "recompute":
		return TipRecompute, nil
	case "keep-manual":
		return TipKeepManual, nil
	default:
		return 0, fmt.Errorf("wizard: unknown tip policy %q", s)
	}
}

// Fields are the raw text values as typed by the user.
type Fields struct {
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	Address              string `json:"address"`
	DeliveryInstructions string `json:"delivery_instructions"`
	TotalCost            string `json:"total_cost"`
	Tip                  string `json:"tip"`
}

// Order is a fully validated wizard, ready for the submit pipeline.
type Order struct {
	Name                 string
	Phone                string
	Address              string
	DeliveryInstructions string
	TotalCost            float64
	Tip                  *float64
	Images               []imaging.File
}

// Limits bound the photos one wizard holds in memory. Zero means no limit.
type Limits struct {
	MaxImages int
	MaxBytes  int64
}

var DefaultLimits = Limits{MaxImages: 30, MaxBytes: 128 << 20}

// Wizard is the in-progress state of one user's order. It is safe for
// concurrent use.
type Wizard struct {
	mu         sync.Mutex
	step       Step
	fields     Fields
	images     []imaging.File
	imageBytes int64
	tipEdited  bool
	policy     TipPolicy
	limits     Limits
}

func New(policy TipPolicy) *Wizard {
	return NewWithLimits(policy, DefaultLimits)
}

func NewWithLimits(policy TipPolicy, limits Limits) *Wizard {
	return &Wizard{step: FirstStep, policy: policy, limits: limits}
}

// Prefill copies the non-empty contact values of a stored profile.
func (w *Wizard) Prefill(p *models.UserProfile) {
	if p == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if v := deref(p.FullName); v != "" {
		w.fields.Name = v
	}
	if v := deref(p.PhoneNumber); v != "" {
		w.fields.Phone = v
	}
	if v := deref(p.Address); v != "" {
		w.fields.Address = v
	}
	if v := deref(p.DeliveryInstructions); v != "" {
		w.fields.DeliveryInstructions = v
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Fields() Fields {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fields
}

func (w *Wizard) Images() []imaging.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]imaging.File(nil), w.images...)
}

// Set stores the text value for a step. Setting the total cost derives the
// tip according to the wizard's TipPolicy.
func (w *Wizard) Set(step Step, value string) error {
	if !step.IsText() {
		return ErrNotATextStep
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	switch step {
	case StepName:
		w.fields.Name = value
	case StepPhone:
		w.fields.Phone = value
	case StepAddress:
		w.fields.Address = value
	case StepInstructions:
		w.fields.DeliveryInstructions = value
	case StepTotalCost:
		w.fields.TotalCost = value
		if w.policy == TipRecompute || !w.tipEdited {
			w.fields.Tip = suggestTip(value)
			w.tipEdited = false
		}
	case StepTip:
		w.fields.Tip = value
		w.tipEdited = true
	}
	return nil
}

// AddImages appends files to the selection, keeping selection order. Either
// all files are added or, when the wizard's limits would be exceeded, none.
func (w *Wizard) AddImages(files ...imaging.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var added int64
	for _, f := range files {
		added += int64(len(f.Data))
	}
	if w.limits.MaxImages > 0 && len(w.images)+len(files) > w.limits.MaxImages {
		return &LimitError{Limit: fmt.Sprintf("%d photos", w.limits.MaxImages)}
	}
	if w.limits.MaxBytes > 0 && w.imageBytes+added > w.limits.MaxBytes {
		return &LimitError{Limit: fmt.Sprintf("%d MB of photos", w.limits.MaxBytes>>20)}
	}

	w.images = append(w.images, files...)
	w.imageBytes += added
	return nil
}

func (w *Wizard) RemoveImage(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index >= len(w.images) {
		return ErrImageIndex
	}
	w.imageBytes -= int64(len(w.images[index].Data))
	w.images = append(w.images[:index:index], w.images[index+1:]...)
	return nil
}

// CanProceed is the gate for leaving step forward.
func (w *Wizard) CanProceed(step Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canProceed(step)
}

func (w *Wizard) canProceed(step Step) bool {
	switch step {
	case StepName:
		return filled(w.fields.Name)
	case StepPhone:
		return filled(w.fields.Phone)
	case StepAddress:
		return filled(w.fields.Address)
	case StepInstructions:
		return filled(w.fields.DeliveryInstructions)
	case StepTotalCost:
		cost, err := parseAmount(w.fields.TotalCost)
		return err == nil && cost >= 0
	case StepTip:
		return true
	case StepImages:
		return len(w.images) >= MinImages
	default:
		return false
	}
}

// Next advances one step if the current one is complete.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.canProceed(w.step) {
		return ErrIncompleteStep
	}
	w.step = w.step.next()
	return nil
}

func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = w.step.prev()
}

// SuggestedTip is 15% of the current total cost, formatted to cents.
func (w *Wizard) SuggestedTip() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tip := suggestTip(w.fields.TotalCost)
	return tip, tip != ""
}

// Validate runs every field check and returns the parsed order.
func (w *Wizard) Validate() (Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f := w.fields

	required := []struct {
		step  Step
		value string
	}{
		{StepName, f.Name},
		{StepPhone, f.Phone},
		{StepAddress, f.Address},
		{StepInstructions, f.DeliveryInstructions},
		{StepTotalCost, f.TotalCost},
	}
	for _, r := range required {
		if !filled(r.value) {
			return Order{}, &ValidationError{Step: r.step, Message: "All fields except tip are required"}
		}
	}

	if len(w.images) < MinImages {
		return Order{}, ErrTooFewImages
	}

	cost, err := parseAmount(f.TotalCost)
	if err != nil {
		return Order{}, &ValidationError{Step: StepTotalCost, Message: "Total cost must be a valid number"}
	}
	if cost < 0 {
		return Order{}, &ValidationError{Step: StepTotalCost, Message: "Total cost must not be negative"}
	}

	var tip *float64
	if filled(f.Tip) {
		t, err := parseAmount(f.Tip)
		if err != nil {
			return Order{}, &ValidationError{Step: StepTip, Message: "Tip must be a valid number"}
		}
		if t < 0 {
			return Order{}, &ValidationError{Step: StepTip, Message: "Tip must not be negative"}
		}
		tip = &t
	}

	return Order{
		Name:                 strings.TrimSpace(f.Name),
		Phone:                strings.TrimSpace(f.Phone),
		Address:              strings.TrimSpace(f.Address),
		DeliveryInstructions: strings.TrimSpace(f.DeliveryInstructions),
		TotalCost:            cost,
		Tip:                  tip,
		Images:               append([]imaging.File(nil), w.images...),
	}, nil
}

// ImageInfo describes a selected file without its bytes.
type ImageInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Snapshot is a read-only view of the wizard for rendering.
type Snapshot struct {
	Step         string      `json:"step"`
	StepIndex    int         `json:"step_index"`
	StepTitle    string      `json:"step_title"`
	TotalSteps   int         `json:"total_steps"`
	Fields       Fields      `json:"fields"`
	Images       []ImageInfo `json:"images"`
	CanProceed   bool        `json:"can_proceed"`
	CanSubmit    bool        `json:"can_submit"`
	SuggestedTip string      `json:"suggested_tip,omitempty"`
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	images := make([]ImageInfo, 0, len(w.images))
	for _, img := range w.images {
		images = append(images, ImageInfo{Name: img.Name, ContentType: img.ContentType, Size: len(img.Data)})
	}

	canProceed := w.canProceed(w.step)
	return Snapshot{
		Step:         w.step.String(),
		StepIndex:    int(w.step),
		StepTitle:    w.step.Title(),
		TotalSteps:   StepCount,
		Fields:       w.fields,
		Images:       images,
		CanProceed:   canProceed,
		CanSubmit:    w.step == LastStep && canProceed,
		SuggestedTip: suggestTip(w.fields.TotalCost),
	}
}

func suggestTip(totalCost string) string {
	cost, err := parseAmount(totalCost)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(cost*TipRate, 'f', 2, 64)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not finite", s)
	}
	return v, nil
}

func filled(s string) bool {
	return strings.TrimSpace(s) != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
