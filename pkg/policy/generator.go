package policy

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "!£%&()?#_$"

	letterChars       = lowerChars + upperChars
	alphanumericChars = letterChars + digitChars

	// maxAttempts bounds the retries spent escaping forbidden prefixes and
	// suffixes before the rules are declared unsatisfiable.
	maxAttempts = 100
)

// Generator produces random passwords satisfying merged rules.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator reading from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// Generate returns a password of r.MinLength characters satisfying r, or an
// error wrapping ErrUnsatisfiablePolicy.
func (g *Generator) Generate(r Rules) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := g.candidate(r)
		if err != nil {
			return "", err
		}
		if lastErr = Check(candidate, r); lastErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrUnsatisfiablePolicy, lastErr)
}

func (g *Generator) candidate(r Rules) (string, error) {
	length := r.MinLength
	pw := make([]rune, length)
	for i := range pw {
		c, err := g.pick(alphanumericChars)
		if err != nil {
			return "", err
		}
		pw[i] = c
	}

	startRule := r.MustStartWithDigit || r.MustntStartWithDigit || r.MustStartWithAlpha ||
		r.MustntStartWithAlpha || r.MustStartWithNonAlpha || r.MustntStartWithNonAlpha
	endRule := r.MustEndWithDigit || r.MustntEndWithDigit || r.MustEndWithAlpha ||
		r.MustntEndWithAlpha || r.MustEndWithNonAlpha || r.MustntEndWithNonAlpha

	free := make([]int, 0, length)
	for i := 0; i < length; i++ {
		if (i == 0 && startRule) || (i == length-1 && endRule) {
			continue
		}
		free = append(free, i)
	}
	if err := g.shuffle(free); err != nil {
		return "", err
	}

	var required []string
	if r.DigitRequired {
		required = append(required, digitChars)
	}
	if r.LowercaseRequired {
		required = append(required, lowerChars)
	}
	if r.UppercaseRequired {
		required = append(required, upperChars)
	}
	if r.NonAlphanumericRequired {
		required = append(required, specialChars)
	}
	for i, set := range required {
		if i >= len(free) {
			break
		}
		c, err := g.pick(set)
		if err != nil {
			return "", err
		}
		pw[free[i]] = c
	}

	if startRule {
		set := boundarySet(r.MustStartWithDigit, r.MustntStartWithDigit, r.MustStartWithAlpha,
			r.MustntStartWithAlpha, r.MustStartWithNonAlpha, r.MustntStartWithNonAlpha)
		c, err := g.pick(set)
		if err != nil {
			return "", err
		}
		pw[0] = c
	}
	if endRule && length > 0 {
		set := boundarySet(r.MustEndWithDigit, r.MustntEndWithDigit, r.MustEndWithAlpha,
			r.MustntEndWithAlpha, r.MustEndWithNonAlpha, r.MustntEndWithNonAlpha)
		c, err := g.pick(set)
		if err != nil {
			return "", err
		}
		pw[length-1] = c
	}

	return string(pw), nil
}

// boundarySet returns the characters allowed at a password boundary.
func boundarySet(digit, noDigit, alpha, noAlpha, nonAlpha, noNonAlpha bool) string {
	var set string
	switch {
	case digit:
		set = digitChars
	case alpha:
		set = letterChars
	case nonAlpha:
		set = digitChars + specialChars
	default:
		set = alphanumericChars + specialChars
	}
	if noDigit {
		set = strings.Map(func(c rune) rune {
			if strings.ContainsRune(digitChars, c) {
				return -1
			}
			return c
		}, set)
	}
	if noAlpha {
		set = strings.Map(func(c rune) rune {
			if strings.ContainsRune(letterChars, c) {
				return -1
			}
			return c
		}, set)
	}
	if noNonAlpha {
		set = strings.Map(func(c rune) rune {
			if !strings.ContainsRune(letterChars, c) {
				return -1
			}
			return c
		}, set)
	}
	return set
}

func (g *Generator) pick(set string) (rune, error) {
	runes := []rune(set)
	if len(runes) == 0 {
		return 0, fmt.Errorf("%w: no character allowed", ErrUnsatisfiablePolicy)
	}
	i, err := g.intn(len(runes))
	if err != nil {
		return 0, err
	}
	return runes[i], nil
}

func (g *Generator) intn(n int) (int, error) {
	v, err := rand.Int(g.rand, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return int(v.Int64()), nil
}

func (g *Generator) shuffle(s []int) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := g.intn(i + 1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

// RandomPassword returns n cryptographically random alphanumeric characters.
// It is the fallback when policy generation is unsatisfiable.
func RandomPassword(n int) string {
	g := NewGenerator()
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		c, err := g.pick(alphanumericChars)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
