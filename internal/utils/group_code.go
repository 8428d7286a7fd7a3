package utils

import (
	"math/rand/v2"
	"strings"
)

const (
	groupCodeLength   = 6
	groupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateGroupCode returns a shareable group id such as K3X9QZ
func GenerateGroupCode() string {
	var b strings.Builder
	b.Grow(groupCodeLength)
	for i := 0; i < groupCodeLength; i++ {
		b.WriteByte(groupCodeAlphabet[rand.IntN(len(groupCodeAlphabet))])
	}
	return b.String()
}

// ValidateGroupCode validates the format of a group code
func ValidateGroupCode(code string) bool {
	if len(code) != groupCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(groupCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
