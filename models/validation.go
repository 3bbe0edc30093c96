package models

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"brokerdesk/apperror"
)

// Validate is the shared validator for entities and request DTOs.
var Validate = newValidator()

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{4,18}[0-9]$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// validateStruct runs the struct tags of v and converts failures into a
// validation error whose message is the first failure.
func validateStruct(v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		path := fieldPath(fe)
		msg := fieldMessage(fe)
		if _, ok := fields[path]; !ok {
			fields[path] = msg
		}
		if first == "" {
			first = msg
		}
	}
	return apperror.ValidationFields(first, fields)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		if fe.Kind() == reflect.Slice {
			switch fe.Field() {
			case "regionFocus":
				return "Please select at least one region"
			case "sectors", "regionSectors":
				return "Please select at least one sector"
			}
			return fmt.Sprintf("Please select at least one %s", fe.Field())
		}
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_if":
		return fmt.Sprintf("%s is required for an existing investor", fe.Field())
	case "email":
		return "Please enter a valid email"
	case "iso3166_1_alpha2":
		return "Please enter a valid country code"
	case "phone":
		return "Please enter a valid mobile number"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
