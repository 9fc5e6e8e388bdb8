package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	codeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{2,50}$`)
	hhmmRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func init() {
	Validate = validator.New()
	register(Validate)
}

// RegisterGinValidators installs the custom rules on gin's binding engine so
// `binding:"..."` tags can use them too.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	register(v)
	return nil
}

func register(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("config_code", validateConfigCode)
	_ = v.RegisterValidation("rounding_method", oneOf("none", "up", "down", "nearest"))
	_ = v.RegisterValidation("adjustment_type", oneOf("percentage", "fixed"))
	_ = v.RegisterValidation("sap_adjustment_type", oneOf("multiplier", "fixed", "percentage"))
	_ = v.RegisterValidation("hhmm", validateHHMM)
	_ = v.RegisterValidation("service_date", validateServiceDate)
}

// dateLayouts are the accepted service date formats, most specific last
var dateLayouts = []string{"2006-01-02", time.RFC3339Nano}

// ParseDate parses a plain date or an RFC3339 timestamp. Timestamps keep
// their own offset so the calendar day is the one the caller sent.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidationError collects field level failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError converts validator errors into a ValidationError.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(validationErrors)
	}
	return err
}

func validateConfigCode(fl validator.FieldLevel) bool {
	return codeRegex.MatchString(fl.Field().String())
}

func validateHHMM(fl validator.FieldLevel) bool {
	return hhmmRegex.MatchString(fl.Field().String())
}

func validateServiceDate(fl validator.FieldLevel) bool {
	_, ok := ParseDate(fl.Field().String())
	return ok
}

func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldPath drops the top-level struct name: "CreateConfigRequest.distanceRates[0].maxKm" -> "distanceRates[0].maxKm".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	case "config_code":
		return "must be 2-50 letters, digits, '-' or '_'"
	case "rounding_method":
		return "must be one of none, up, down, nearest"
	case "adjustment_type":
		return "must be percentage or fixed"
	case "sap_adjustment_type":
		return "must be multiplier, fixed or percentage"
	case "hhmm":
		return "must be a 24h time HH:MM"
	case "service_date":
		return "must be a date YYYY-MM-DD or an RFC3339 timestamp"
	case "excluded_with":
		return "cannot be combined with " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
