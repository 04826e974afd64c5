package exam

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names rather than Go ones
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the structural requirements of a definition: testId,
// title and duration present and questions a (possibly empty) sequence.
// Per-question content is not validated; unknown types grade as manual.
func Validate(d Definition) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is required"
		if fe.Field() == "questions" {
			reason = "must be a sequence"
		}
		return &InvalidDefinitionError{TestID: d.TestID, Field: fe.Field(), Reason: reason}
	}
	return &InvalidDefinitionError{TestID: d.TestID, Reason: err.Error()}
}

// Decode parses a JSON definition. A payload whose questions value is not
// an array is reported as an InvalidDefinitionError, not a decode failure.
func Decode(b []byte) (Definition, error) {
	var d Definition
	if err := json.Unmarshal(b, &d); err != nil {
		var probe struct {
			TestID string `json:"testId"`
		}
		_ = json.Unmarshal(b, &probe)
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Definition{}, &InvalidDefinitionError{TestID: probe.TestID, Field: typeErr.Field, Reason: "has the wrong type"}
		}
		return Definition{}, &InvalidDefinitionError{TestID: probe.TestID, Reason: err.Error()}
	}
	return d, nil
}
