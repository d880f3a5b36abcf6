package validate

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"sawtooth/internal/domain"
)

var (
	reID       = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)
	reCurrency = regexp.MustCompile(`^[a-z]{3}$`)
	reSlugTrim = regexp.MustCompile(`[^a-z0-9]+`)

	v = validator.New(validator.WithRequiredStructEnabled())
)

// ID validates a product slug.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reID.MatchString(s)
}

func Status(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, slices.Contains(domain.Statuses, s)
}

func Category(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, slices.Contains(domain.Categories, s)
}

func Subcategory(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, slices.Contains(domain.ClothingSubcategories, s)
}

// Currency accepts a three letter ISO code in any case and returns it lower-cased.
func Currency(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, reCurrency.MatchString(s)
}

// Title trims and enforces a display length window.
func Title(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 200 {
		return "", false
	}
	return s, true
}

// Slug derives an id from free text: lower-case, runs of non-alphanumerics
// collapsed to a single dash.
func Slug(s string) string {
	out := strings.Trim(reSlugTrim.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(out) > 100 {
		out = strings.Trim(out[:100], "-")
	}
	if out == "" {
		return "item"
	}
	return out
}

// Struct runs tag validation and reports the first failing field as a
// validation error.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		return domain.Invalid(field, "invalid "+field)
	}
	return domain.Invalid("", err.Error())
}

// Var validates a single value against a tag expression.
func Var(field string, value any, tag string) error {
	if err := v.Var(value, tag); err != nil {
		return domain.Invalid(field, "invalid "+field)
	}
	return nil
}
