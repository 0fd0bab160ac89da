package policy

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Check reports whether password satisfies r.
func Check(password string, r Rules) error {
	n := utf8.RuneCountInString(password)
	if n < r.MinLength {
		return fmt.Errorf("password shorter than %d characters", r.MinLength)
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		return fmt.Errorf("password longer than %d characters", r.MaxLength)
	}

	var hasDigit, hasLower, hasUpper, hasSpecial, hasAlnum bool
	for _, c := range password {
		switch {
		case unicode.IsDigit(c):
			hasDigit, hasAlnum = true, true
		case unicode.IsLower(c):
			hasLower, hasAlnum = true, true
		case unicode.IsUpper(c):
			hasUpper, hasAlnum = true, true
		case unicode.IsLetter(c):
			hasAlnum = true
		default:
			hasSpecial = true
		}
	}

	switch {
	case r.DigitRequired && !hasDigit:
		return fmt.Errorf("password must contain a digit")
	case r.LowercaseRequired && !hasLower:
		return fmt.Errorf("password must contain a lowercase letter")
	case r.UppercaseRequired && !hasUpper:
		return fmt.Errorf("password must contain an uppercase letter")
	case r.NonAlphanumericRequired && !hasSpecial:
		return fmt.Errorf("password must contain a non alphanumeric character")
	case r.AlphanumericRequired && !hasAlnum:
		return fmt.Errorf("password must contain an alphanumeric character")
	}

	if n > 0 {
		first, _ := utf8.DecodeRuneInString(password)
		if err := checkBoundary("start", first, r.MustStartWithDigit, r.MustntStartWithDigit,
			r.MustStartWithAlpha, r.MustntStartWithAlpha, r.MustStartWithNonAlpha, r.MustntStartWithNonAlpha); err != nil {
			return err
		}
		last, _ := utf8.DecodeLastRuneInString(password)
		if err := checkBoundary("end", last, r.MustEndWithDigit, r.MustntEndWithDigit,
			r.MustEndWithAlpha, r.MustntEndWithAlpha, r.MustEndWithNonAlpha, r.MustntEndWithNonAlpha); err != nil {
			return err
		}
	}

	for _, prefix := range r.PrefixesNotPermitted {
		if strings.HasPrefix(password, prefix) {
			return fmt.Errorf("password must not start with %q", prefix)
		}
	}
	for _, suffix := range r.SuffixesNotPermitted {
		if strings.HasSuffix(password, suffix) {
			return fmt.Errorf("password must not end with %q", suffix)
		}
	}
	return nil
}

func checkBoundary(where string, c rune, digit, noDigit, alpha, noAlpha, nonAlpha, noNonAlpha bool) error {
	isDigit := unicode.IsDigit(c)
	isAlpha := unicode.IsLetter(c)
	switch {
	case digit && !isDigit:
		return fmt.Errorf("password must %s with a digit", where)
	case noDigit && isDigit:
		return fmt.Errorf("password must not %s with a digit", where)
	case alpha && !isAlpha:
		return fmt.Errorf("password must %s with a letter", where)
	case noAlpha && isAlpha:
		return fmt.Errorf("password must not %s with a letter", where)
	case nonAlpha && isAlpha:
		return fmt.Errorf("password must %s with a non alphabetic character", where)
	case noNonAlpha && !isAlpha:
		return fmt.Errorf("password must not %s with a non alphabetic character", where)
	}
	return nil
}
