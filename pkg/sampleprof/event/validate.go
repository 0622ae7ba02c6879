package event

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// eventValidate checks the field invariants of event records.
var eventValidate *validator.Validate

func init() {
	eventValidate = validator.New()

	// Opt fields are validated on the value they hold; absent values
	// satisfy omitempty.
	eventValidate.RegisterCustomTypeFunc(optValue[time.Duration], Opt[time.Duration]{})
	eventValidate.RegisterCustomTypeFunc(optValue[int64], Opt[int64]{})
	eventValidate.RegisterCustomTypeFunc(optValue[uint64], Opt[uint64]{})
	eventValidate.RegisterCustomTypeFunc(optValue[string], Opt[string]{})

	eventValidate.RegisterStructValidation(validateFrameDepth, StackBasedEvent{})
}

func optValue[T any](field reflect.Value) any {
	o, ok := field.Interface().(Opt[T])
	if !ok {
		return nil
	}
	v, set := o.Get()
	if !set {
		return nil
	}
	return v
}

// validateFrameDepth enforces nframes >= len(frames).
func validateFrameDepth(sl validator.StructLevel) {
	e, ok := sl.Current().Interface().(StackBasedEvent)
	if !ok {
		return
	}
	if e.NFrames < len(e.Frames) {
		sl.ReportError(e.NFrames, "NFrames", "NFrames", "framedepth", "")
	}
}

// Validate checks the invariants of an event:
//   - Duration and SamplingPeriod are never negative when present
//   - NFrames is at least len(Frames)
//
// Construction never validates, so the sampling path pays nothing; callers
// upstream or downstream (e.g. an exporter) validate when they need to.
// Failures are returned as *ValidationError.
func Validate(ev Event) error {
	if ev == nil {
		return &ValidationError{Event: "nil", Message: "event is nil"}
	}
	if v := reflect.ValueOf(ev); v.Kind() == reflect.Pointer && v.IsNil() {
		return &ValidationError{Event: "nil", Message: "event is nil"}
	}

	err := eventValidate.Struct(ev)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Event: ev.Name(), Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return &ValidationError{
		Event:   ev.Name(),
		Field:   fieldErrs[0].Field(),
		Message: strings.Join(msgs, "; "),
		Err:     err,
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must not be negative, got %v", fe.Field(), fe.Value())
	case "framedepth":
		return fmt.Sprintf("%s (%v) is smaller than the number of captured frames", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
}
