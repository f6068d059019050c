package wizard

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// FieldErrors maps a field path (snake_case, dot/index separated) to a
// human-readable message.
type FieldErrors map[string]string

// StepResult reports the outcome of validating one step in isolation.
type StepResult struct {
	Valid  bool        `json:"valid"`
	Errors FieldErrors `json:"errors,omitempty"`
}

// Registry validates individual wizard steps. Each step's rules are
// declared independently so steps can be checked and reported on in
// isolation; validation is a pure function of the draft slice.
type Registry struct {
	validate *validator.Validate
}

// NewRegistry constructs the step schema registry.
func NewRegistry() *Registry {
	return &Registry{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks the named step against the current draft.
func (r *Registry) Validate(step StepKey, draft *OrderDraft) StepResult {
	errs := FieldErrors{}
	switch step {
	case StepOrderSelection:
		// Choosing an approval is optional; orders may start from scratch.
	case StepOrderDetails:
		r.collect(errs, draft.OrderDetails)
	case StepScheduling:
		r.collect(errs, draft.Scheduling)
		r.checkDateRange(errs, draft.Scheduling)
	case StepMaterials:
		r.collect(errs, draft.Materials)
	case StepQuality:
		r.collect(errs, draft.Quality)
	case StepTeam:
		// Team assignments are entirely optional.
	case StepCustomization:
		r.checkCustomization(errs, draft.Customization)
	case StepReview:
		if !draft.Review.Acknowledge {
			errs["acknowledge"] = "order summary must be acknowledged before submitting"
		}
	default:
		errs["step"] = fmt.Sprintf("unknown step %q", step)
	}
	return StepResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateAll runs every step and returns per-step results.
func (r *Registry) ValidateAll(draft *OrderDraft) map[StepKey]StepResult {
	out := make(map[StepKey]StepResult, StepCount)
	for _, step := range stepOrder {
		out[step] = r.Validate(step, draft)
	}
	return out
}

func (r *Registry) collect(errs FieldErrors, slice any) {
	err := r.validate.Struct(slice)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["_"] = err.Error()
		return
	}
	for _, fe := range verrs {
		errs[fieldPath(fe)] = messageFor(fe)
	}
}

func (r *Registry) checkDateRange(errs FieldErrors, s Scheduling) {
	start, errStart := time.Parse(dateLayout, s.PlannedStartDate)
	end, errEnd := time.Parse(dateLayout, s.PlannedEndDate)
	if errStart != nil || errEnd != nil {
		return
	}
	if end.Before(start) {
		errs["planned_end_date"] = "planned end date must not be before start date"
	}
}

func (r *Registry) checkCustomization(errs FieldErrors, c Customization) {
	if !c.UseCustomStages {
		return
	}
	if len(c.Stages) == 0 {
		errs["stages"] = "at least one stage is required when using custom stages"
		return
	}
	for i, stage := range c.Stages {
		if strings.TrimSpace(stage.Name) == "" {
			errs[fmt.Sprintf("stages[%d].name", i)] = "stage name is required"
		}
		if stage.DurationHours != nil && *stage.DurationHours < 0 {
			errs[fmt.Sprintf("stages[%d].duration_hours", i)] = "duration must not be negative"
		}
		if stage.Outsourced && stage.VendorID == nil {
			errs[fmt.Sprintf("stages[%d].vendor_id", i)] = "vendor is required for outsourced stages"
		}
	}
}

// fieldPath converts a validator namespace like
// "Materials.Items[0].RequiredQuantity" into "items[0].required_quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		idx := ""
		if b := strings.Index(p, "["); b >= 0 {
			idx = p[b:]
			p = p[:b]
		}
		parts[i] = snakeCase(p) + idx
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "this field is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("at least %s entry is required", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("must be a date in %s format", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
