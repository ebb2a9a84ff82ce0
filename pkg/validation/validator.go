package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Identifier and cost limits shared by topology and API inputs
	MaxIDLength    = 128
	MaxLabelLength = 256
	MinCost        = 1
	MaxCost        = 65535

	idPattern      = regexp.MustCompile(`^[A-Za-z0-9_.:/\-]+$`)
	countryPattern = regexp.MustCompile(`^[A-Za-z]{2,3}$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("elementid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= MaxIDLength && idPattern.MatchString(s)
	})
	_ = validate.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || countryPattern.MatchString(s)
	})
}

// Struct validates v against its `validate` struct tags and returns the
// first failure in a readable form.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Var validates a single value against a tag expression.
func Var(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return describe(field, verrs[0])
		}
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// ValidateCost checks that cost is inside the OSPF interface cost range.
func ValidateCost(cost int) error {
	if cost < MinCost || cost > MaxCost {
		return fmt.Errorf("cost %d outside [%d, %d]", cost, MinCost, MaxCost)
	}
	return nil
}

// ValidateID checks an element identifier.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("identifier %q exceeds maximum length of %d characters", id, MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("identifier %q contains invalid characters", id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		return describe(namespace(e), e)
	}

	return err
}

func namespace(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(field string, e validator.FieldError) error {
	param := e.Param()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "min", "gte":
		return fmt.Errorf("%s: must be at least %s", field, param)
	case "max", "lte":
		return fmt.Errorf("%s: must not exceed %s", field, param)
	case "gt":
		return fmt.Errorf("%s: must be greater than %s", field, param)
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", field, param)
	case "elementid":
		return fmt.Errorf("%s: invalid identifier %q", field, e.Value())
	case "country":
		return fmt.Errorf("%s: invalid country code %q", field, e.Value())
	case "nefield":
		return fmt.Errorf("%s: must differ from %s", field, param)
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}
