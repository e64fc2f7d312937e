// Package validation validates request payloads with go-playground/validator,
// including the cellar's year and color rules.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
)

// Year bounds relative to the current year.
const (
	MinVintage           = 1000
	VintageAhead         = 10
	WindowStartAhead     = 50
	WindowEndAhead       = 100
	tagVintage           = "vintage"
	tagWindowStart       = "window_start"
	tagWindowEnd         = "window_end"
	tagColor             = "wine_color"
	validColorsForHumans = "red, white, rose, sparkling, other"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New creates a validator configured for our domain.
func New() *Validator {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Validator {
	v := validator.New()
	val := &Validator{v: v, now: now}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation(tagVintage, val.yearWithin(MinVintage, VintageAhead))
	_ = v.RegisterValidation(tagWindowStart, val.yearWithin(0, WindowStartAhead))
	_ = v.RegisterValidation(tagWindowEnd, val.yearWithin(0, WindowEndAhead))
	_ = v.RegisterValidation(tagColor, validColor)

	return val
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// yearWithin accepts nil pointers and zero values; set values must lie in
// [floor, currentYear+ahead].
func (v *Validator) yearWithin(floor, ahead int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				return true
			}
			field = field.Elem()
		}
		if !field.CanInt() {
			return false
		}
		year := int(field.Int())
		if year == 0 && floor == 0 {
			return true
		}
		return year >= floor && year <= v.now().Year()+ahead
	}
}

func validColor(fl validator.FieldLevel) bool {
	switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
	case "", "red", "white", "rose", "rosé", "sparkling", "other":
		return true
	default:
		return false
	}
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	year := v.now().Year()
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case tagVintage:
		return fmt.Sprintf("must be between %d and %d", MinVintage, year+VintageAhead)
	case tagWindowStart:
		return fmt.Sprintf("must not be later than %d", year+WindowStartAhead)
	case tagWindowEnd:
		return fmt.Sprintf("must not be later than %d", year+WindowEndAhead)
	case tagColor:
		return "must be one of: " + validColorsForHumans
	default:
		return "is invalid"
	}
}
