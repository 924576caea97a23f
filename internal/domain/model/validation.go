package model

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"telegram-smm-autoboost/internal/domain"
)

// ValidationError is a rejected user input. Key names the message that
// re-prompts the user; Args are its format arguments.
type ValidationError struct {
	Err  error
	Key  string
	Args []any
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, key string, args ...any) *ValidationError {
	return &ValidationError{Err: err, Key: key, Args: args}
}

// ValidateHTTPURL trims s and requires an http(s) scheme and a host.
// key is the re-prompt message used on failure.
func ValidateHTTPURL(s, key string) (string, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", invalid(domain.ErrInvalidURL, key)
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", invalid(domain.ErrInvalidURL, key)
	}
	return s, nil
}

// ValidateAPIKey trims s and rejects keys shorter than minLen.
func ValidateAPIKey(s string, minLen int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) < minLen {
		return "", invalid(domain.ErrInvalidAPIKey, "invalid_api_key", minLen)
	}
	return s, nil
}

// ValidateServiceID trims s; with numericOnly every rune must be a digit.
func ValidateServiceID(s string, numericOnly bool) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(domain.ErrInvalidServiceID, "invalid_service_id")
	}
	if numericOnly {
		for _, r := range s {
			if !unicode.IsDigit(r) {
				return "", invalid(domain.ErrInvalidServiceID, "invalid_service_id")
			}
		}
	}
	return s, nil
}

// ParseQuantity accepts a strictly positive integer that fits the 32-bit
// default_quantity column.
func ParseQuantity(s string) (int, error) {
	q, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil || q <= 0 {
		return 0, invalid(domain.ErrInvalidQuantity, "invalid_quantity")
	}
	return int(q), nil
}

// ParseChannelInput is ParseChannelRef with a re-prompt attached.
func ParseChannelInput(s string) (ChannelRef, error) {
	ref, err := ParseChannelRef(s)
	if err != nil {
		return ChannelRef{}, invalid(err, "invalid_channel")
	}
	return ref, nil
}
