package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Beta codes avoid ambiguous characters (0/O, 1/I/L) so they survive being
// read aloud or typed from a screenshot.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// BetaCodeLength is the length of generated beta codes.
const BetaCodeLength = 8

// GenerateBetaCode returns a fresh random beta code.
func GenerateBetaCode() (string, error) {
	buf := make([]byte, BetaCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// GenerateTempPassword returns a random throwaway password for tester
// accounts created during beta signup.
func GenerateTempPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
