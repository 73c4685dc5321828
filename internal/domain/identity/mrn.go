package identity

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Medical record numbers are 5 characters drawn from an alphabet that
// excludes visually ambiguous characters (I, L, O, 0, 1). Every MRN
// contains at least one letter and at least one digit so it can never be
// mistaken for a plain counter or a plain word.
const (
	MRNLength   = 5
	mrnLetters  = "ABCDEFGHJKMNPQRSTUVWXYZ"
	mrnDigits   = "23456789"
	mrnAlphabet = mrnLetters + mrnDigits
)

// ValidateMRN reports whether s is a well-formed medical record number.
// It expects the canonical uppercase form; callers normalize first.
func ValidateMRN(s string) error {
	if len(s) != MRNLength {
		return fmt.Errorf("mrn must be exactly %d characters", MRNLength)
	}
	hasLetter, hasDigit := false, false
	for _, ch := range s {
		switch {
		case strings.ContainsRune(mrnLetters, ch):
			hasLetter = true
		case strings.ContainsRune(mrnDigits, ch):
			hasDigit = true
		default:
			return fmt.Errorf("mrn contains invalid character %q", ch)
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("mrn must contain at least one letter and one digit")
	}
	return nil
}

// NormalizeMRN trims surrounding whitespace and uppercases the input.
// It does not validate.
func NormalizeMRN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// maxUnbiasedByte is the largest multiple of the alphabet size that fits in
// a byte. Random bytes at or above it are redrawn rather than folded, so
// every symbol is equally likely.
const maxUnbiasedByte = 256 - 256%len(mrnAlphabet)

// symbolIndex maps one random byte to an alphabet index, rejecting the
// biased tail of the byte range.
func symbolIndex(b byte) (int, bool) {
	if int(b) >= maxUnbiasedByte {
		return 0, false
	}
	return int(b) % len(mrnAlphabet), true
}

// GenerateMRN produces a random medical record number using crypto/rand.
// Candidates without both a letter and a digit are rejected and redrawn, so
// the returned value always passes ValidateMRN.
func GenerateMRN() (string, error) {
	b := make([]byte, MRNLength)
	buf := make([]byte, 1)
	for {
		for i := 0; i < MRNLength; {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("reading random bytes: %w", err)
			}
			idx, ok := symbolIndex(buf[0])
			if !ok {
				continue
			}
			b[i] = mrnAlphabet[idx]
			i++
		}
		candidate := string(b)
		if err := ValidateMRN(candidate); err == nil {
			return candidate, nil
		}
	}
}
