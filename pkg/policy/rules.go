// Package policy merges password rules and generates compliant passwords.
package policy

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnsatisfiablePolicy is returned when no password can satisfy the
// merged rules. Callers are expected to fall back to RandomPassword.
var ErrUnsatisfiablePolicy = errors.New("password policy cannot be satisfied")

// DefaultMaxLength bounds merged rules that declare no maximum.
const DefaultMaxLength = 1000

// Rules is one password policy specification.
type Rules struct {
	MinLength int `yaml:"min_length" json:"min_length" mapstructure:"min_length"`
	MaxLength int `yaml:"max_length" json:"max_length" mapstructure:"max_length"`

	NonAlphanumericRequired bool `yaml:"non_alphanumeric_required" json:"non_alphanumeric_required" mapstructure:"non_alphanumeric_required"`
	AlphanumericRequired    bool `yaml:"alphanumeric_required" json:"alphanumeric_required" mapstructure:"alphanumeric_required"`
	DigitRequired           bool `yaml:"digit_required" json:"digit_required" mapstructure:"digit_required"`
	LowercaseRequired       bool `yaml:"lowercase_required" json:"lowercase_required" mapstructure:"lowercase_required"`
	UppercaseRequired       bool `yaml:"uppercase_required" json:"uppercase_required" mapstructure:"uppercase_required"`

	MustStartWithDigit      bool `yaml:"must_start_with_digit" json:"must_start_with_digit" mapstructure:"must_start_with_digit"`
	MustntStartWithDigit    bool `yaml:"mustnt_start_with_digit" json:"mustnt_start_with_digit" mapstructure:"mustnt_start_with_digit"`
	MustEndWithDigit        bool `yaml:"must_end_with_digit" json:"must_end_with_digit" mapstructure:"must_end_with_digit"`
	MustntEndWithDigit      bool `yaml:"mustnt_end_with_digit" json:"mustnt_end_with_digit" mapstructure:"mustnt_end_with_digit"`
	MustStartWithAlpha      bool `yaml:"must_start_with_alpha" json:"must_start_with_alpha" mapstructure:"must_start_with_alpha"`
	MustntStartWithAlpha    bool `yaml:"mustnt_start_with_alpha" json:"mustnt_start_with_alpha" mapstructure:"mustnt_start_with_alpha"`
	MustEndWithAlpha        bool `yaml:"must_end_with_alpha" json:"must_end_with_alpha" mapstructure:"must_end_with_alpha"`
	MustntEndWithAlpha      bool `yaml:"mustnt_end_with_alpha" json:"mustnt_end_with_alpha" mapstructure:"mustnt_end_with_alpha"`
	MustStartWithNonAlpha   bool `yaml:"must_start_with_non_alpha" json:"must_start_with_non_alpha" mapstructure:"must_start_with_non_alpha"`
	MustntStartWithNonAlpha bool `yaml:"mustnt_start_with_non_alpha" json:"mustnt_start_with_non_alpha" mapstructure:"mustnt_start_with_non_alpha"`
	MustEndWithNonAlpha     bool `yaml:"must_end_with_non_alpha" json:"must_end_with_non_alpha" mapstructure:"must_end_with_non_alpha"`
	MustntEndWithNonAlpha   bool `yaml:"mustnt_end_with_non_alpha" json:"mustnt_end_with_non_alpha" mapstructure:"mustnt_end_with_non_alpha"`

	PrefixesNotPermitted []string `yaml:"prefixes_not_permitted,omitempty" json:"prefixes_not_permitted,omitempty" mapstructure:"prefixes_not_permitted"`
	SuffixesNotPermitted []string `yaml:"suffixes_not_permitted,omitempty" json:"suffixes_not_permitted,omitempty" mapstructure:"suffixes_not_permitted"`
}

// Merge combines rule sets so that a password satisfying the result
// satisfies each of them: the largest minimum, the smallest non-zero
// maximum, every required flag and every forbidden prefix and suffix.
// Nil entries are skipped.
func Merge(rules ...*Rules) Rules {
	merged := Rules{MaxLength: DefaultMaxLength}
	for _, r := range rules {
		if r == nil {
			continue
		}
		merged.MinLength = max(merged.MinLength, r.MinLength)
		if r.MaxLength != 0 && r.MaxLength < merged.MaxLength {
			merged.MaxLength = r.MaxLength
		}

		merged.NonAlphanumericRequired = merged.NonAlphanumericRequired || r.NonAlphanumericRequired
		merged.AlphanumericRequired = merged.AlphanumericRequired || r.AlphanumericRequired
		merged.DigitRequired = merged.DigitRequired || r.DigitRequired
		merged.LowercaseRequired = merged.LowercaseRequired || r.LowercaseRequired
		merged.UppercaseRequired = merged.UppercaseRequired || r.UppercaseRequired

		merged.MustStartWithDigit = merged.MustStartWithDigit || r.MustStartWithDigit
		merged.MustntStartWithDigit = merged.MustntStartWithDigit || r.MustntStartWithDigit
		merged.MustEndWithDigit = merged.MustEndWithDigit || r.MustEndWithDigit
		merged.MustntEndWithDigit = merged.MustntEndWithDigit || r.MustntEndWithDigit
		merged.MustStartWithAlpha = merged.MustStartWithAlpha || r.MustStartWithAlpha
		merged.MustntStartWithAlpha = merged.MustntStartWithAlpha || r.MustntStartWithAlpha
		merged.MustEndWithAlpha = merged.MustEndWithAlpha || r.MustEndWithAlpha
		merged.MustntEndWithAlpha = merged.MustntEndWithAlpha || r.MustntEndWithAlpha
		merged.MustStartWithNonAlpha = merged.MustStartWithNonAlpha || r.MustStartWithNonAlpha
		merged.MustntStartWithNonAlpha = merged.MustntStartWithNonAlpha || r.MustntStartWithNonAlpha
		merged.MustEndWithNonAlpha = merged.MustEndWithNonAlpha || r.MustEndWithNonAlpha
		merged.MustntEndWithNonAlpha = merged.MustntEndWithNonAlpha || r.MustntEndWithNonAlpha

		merged.PrefixesNotPermitted = union(merged.PrefixesNotPermitted, r.PrefixesNotPermitted)
		merged.SuffixesNotPermitted = union(merged.SuffixesNotPermitted, r.SuffixesNotPermitted)
	}
	return merged
}

func union(a, b []string) []string {
	for _, s := range b {
		if s != "" && !slices.Contains(a, s) {
			a = append(a, s)
		}
	}
	return a
}

// Validate reports, wrapped in ErrUnsatisfiablePolicy, the first
// contradiction in r.
func (r Rules) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrUnsatisfiablePolicy, fmt.Sprintf(format, args...))
	}

	switch {
	case r.MinLength <= 0:
		return fail("minimum length is zero")
	case r.MaxLength > 0 && r.MinLength > r.MaxLength:
		return fail("minimum length %d exceeds maximum %d", r.MinLength, r.MaxLength)

	case r.MustEndWithAlpha && r.MustntEndWithAlpha:
		return fail("mustEndWithAlpha and mustntEndWithAlpha")
	case r.MustEndWithAlpha && r.MustEndWithDigit:
		return fail("mustEndWithAlpha and mustEndWithDigit")
	case r.MustEndWithDigit && r.MustntEndWithDigit:
		return fail("mustEndWithDigit and mustntEndWithDigit")
	case r.MustEndWithNonAlpha && r.MustntEndWithNonAlpha:
		return fail("mustEndWithNonAlpha and mustntEndWithNonAlpha")
	case r.MustEndWithNonAlpha && r.MustEndWithAlpha:
		return fail("mustEndWithNonAlpha and mustEndWithAlpha")
	case r.MustEndWithDigit && r.MustntEndWithNonAlpha:
		return fail("mustEndWithDigit and mustntEndWithNonAlpha")
	case r.MustntEndWithAlpha && r.MustntEndWithNonAlpha:
		return fail("mustntEndWithAlpha and mustntEndWithNonAlpha")

	case r.MustStartWithAlpha && r.MustntStartWithAlpha:
		return fail("mustStartWithAlpha and mustntStartWithAlpha")
	case r.MustStartWithAlpha && r.MustStartWithDigit:
		return fail("mustStartWithAlpha and mustStartWithDigit")
	case r.MustStartWithDigit && r.MustntStartWithDigit:
		return fail("mustStartWithDigit and mustntStartWithDigit")
	case r.MustStartWithNonAlpha && r.MustntStartWithNonAlpha:
		return fail("mustStartWithNonAlpha and mustntStartWithNonAlpha")
	case r.MustStartWithNonAlpha && r.MustStartWithAlpha:
		return fail("mustStartWithNonAlpha and mustStartWithAlpha")
	case r.MustStartWithDigit && r.MustntStartWithNonAlpha:
		return fail("mustStartWithDigit and mustntStartWithNonAlpha")
	case r.MustntStartWithAlpha && r.MustntStartWithNonAlpha:
		return fail("mustntStartWithAlpha and mustntStartWithNonAlpha")
	}

	if n := r.requiredClasses(); n > r.MinLength {
		return fail("%d required character classes do not fit in %d characters", n, r.MinLength)
	}
	return nil
}

// requiredClasses counts the character classes that must appear somewhere.
func (r Rules) requiredClasses() int {
	n := 0
	for _, required := range []bool{r.DigitRequired, r.LowercaseRequired, r.UppercaseRequired, r.NonAlphanumericRequired} {
		if required {
			n++
		}
	}
	return n
}
