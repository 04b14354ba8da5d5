// Package rut validates and formats Chilean national tax identifiers.
package rut

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("RUT inválido")

// Clean strips separators and uppercases the check character.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case '.', '-', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// CheckDigit computes the modulo-11 check character for body.
// The second return is false when body contains anything but digits.
func CheckDigit(body string) (byte, bool) {
	if body == "" {
		return 0, false
	}
	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch remainder := sum % 11; remainder {
	case 0:
		return '0', true
	case 1:
		return 'K', true
	default:
		return byte('0' + 11 - remainder), true
	}
}

// Split returns the body digits and check character of a cleaned identifier.
func Split(raw string) (string, byte, bool) {
	clean := Clean(raw)
	if len(clean) < 2 {
		return "", 0, false
	}
	return clean[:len(clean)-1], clean[len(clean)-1], true
}

func Validate(raw string) bool {
	body, dv, ok := Split(raw)
	if !ok || len(body) < 7 || len(body) > 8 {
		return false
	}
	expected, ok := CheckDigit(body)
	return ok && expected == dv
}

// Parse returns the cleaned form of a valid identifier.
func Parse(raw string) (string, error) {
	if !Validate(raw) {
		return "", ErrInvalid
	}
	return Clean(raw), nil
}

// Format renders raw as dd.ddd.ddd-C. Inputs too short to split are
// returned cleaned.
func Format(raw string) string {
	body, dv, ok := Split(raw)
	if !ok {
		return Clean(raw)
	}
	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteByte(dv)
	return b.String()
}

// Repeated reports whether the body is a single digit repeated, the
// shape of placeholder identifiers such as 11.111.111-1.
func Repeated(raw string) bool {
	body, _, ok := Split(raw)
	if !ok || body == "" {
		return false
	}
	return strings.Count(body, body[:1]) == len(body)
}
