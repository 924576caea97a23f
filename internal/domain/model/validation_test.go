//go:build !integration

package model

import (
	"errors"
	"math"
	"testing"

	"telegram-smm-autoboost/internal/domain"
)

func TestValidateHTTPURL(t *testing.T) {
	good := []string{"http://x/api", " https://panel.example/api/v2 ", "HTTPS://Panel.example"}
	for _, s := range good {
		if _, err := ValidateHTTPURL(s, "invalid_url"); err != nil {
			t.Errorf("%q: unexpected error %v", s, err)
		}
	}
	bad := []string{"", "ftp://x", "panel.example/api", "http://", "https:// "}
	for _, s := range bad {
		_, err := ValidateHTTPURL(s, "invalid_url")
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Key != "invalid_url" || !errors.Is(err, domain.ErrInvalidURL) {
			t.Errorf("%q: expected invalid_url ValidationError, got %v", s, err)
		}
	}
}

func TestValidateAPIKey(t *testing.T) {
	if got, err := ValidateAPIKey("  abcdefghij ", 8); err != nil || got != "abcdefghij" {
		t.Errorf("expected trimmed key, got %q, %v", got, err)
	}
	_, err := ValidateAPIKey("short", 8)
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Args) != 1 || ve.Args[0] != 8 {
		t.Errorf("expected ValidationError carrying the minimum length, got %#v", err)
	}
}

func TestValidateServiceID(t *testing.T) {
	if _, err := ValidateServiceID("123", true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ValidateServiceID("12a", true); !errors.Is(err, domain.ErrInvalidServiceID) {
		t.Errorf("expected ErrInvalidServiceID, got %v", err)
	}
	if _, err := ValidateServiceID("views-hq", false); err != nil {
		t.Errorf("opaque ids are allowed when numeric ids are not enforced: %v", err)
	}
	if _, err := ValidateServiceID("   ", false); err == nil {
		t.Error("blank id must be rejected")
	}
}

func TestParseQuantity(t *testing.T) {
	for _, bad := range []string{"0", "-5", "abc", "", "1.5", "2147483648", "99999999999"} {
		if _, err := ParseQuantity(bad); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("%q: expected ErrInvalidQuantity, got %v", bad, err)
		}
	}
	if q, err := ParseQuantity(" 500 "); err != nil || q != 500 {
		t.Errorf("expected 500, got %d, %v", q, err)
	}
	if q, err := ParseQuantity("2147483647"); err != nil || q != math.MaxInt32 {
		t.Errorf("expected MaxInt32, got %d, %v", q, err)
	}
}
