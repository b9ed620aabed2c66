package handlers

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/redpotato/backend/internal/locales"
)

var (
	plateRe = regexp.MustCompile(`^[A-Z]{1,2}-\d{2,3}-[A-Z]{3}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return plateRe.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		return locales.IsSupported(fl.Field().String())
	})
	_ = v.RegisterValidation("itpdate", func(fl validator.FieldLevel) bool {
		_, err := parseDate(fl.Field().String(), time.UTC)
		return err == nil
	})
	return v
}

// validationErrors maps each failing JSON field to the tags it failed.
// A failed locale also names the accepted codes.
func validationErrors(err error) map[string][]string {
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			tag := fe.Tag()
			if tag == "locale" {
				tag = "locale=" + strings.Join(locales.Supported(), " ")
			}
			fields[fe.Field()] = append(fields[fe.Field()], tag)
		}
	}
	return fields
}

// parseDate accepts a full RFC 3339 timestamp or a calendar date, which is
// taken as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}
