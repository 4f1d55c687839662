package auth

import (
	"errors"
	"testing"

	"housemarket/internal/market"
)

func TestCodeVerifier(t *testing.T) {
	v := NewCodeVerifier("secret")
	if err := v.Verify("secret"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := v.Verify(" secret "); err != nil {
		t.Fatalf("surrounding space should be ignored: %v", err)
	}
	for _, bad := range []string{"", "Secret", "secret1", "secre"} {
		if err := v.Verify(bad); !errors.Is(err, market.ErrUnauthorized) {
			t.Fatalf("code %q: expected unauthorized, got %v", bad, err)
		}
	}
	if err := NewCodeVerifier("").Verify(""); !errors.Is(err, market.ErrUnauthorized) {
		t.Fatalf("empty configured code must reject everything")
	}
}
