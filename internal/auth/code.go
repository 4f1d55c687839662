package auth

import (
	"crypto/subtle"
	"strings"

	"housemarket/internal/market"
)

// CodeVerifier checks the shared code that gates points adjustments.
type CodeVerifier struct {
	code []byte
}

func NewCodeVerifier(code string) *CodeVerifier {
	return &CodeVerifier{code: []byte(strings.TrimSpace(code))}
}

func (v *CodeVerifier) Verify(code string) error {
	if len(v.code) == 0 {
		return market.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(v.code, []byte(strings.TrimSpace(code))) != 1 {
		return market.ErrUnauthorized
	}
	return nil
}
