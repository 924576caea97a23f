package derror

import (
	"errors"
	"fmt"
)

// PanelErrorKind classifies a failed call to an SMM panel.
type PanelErrorKind string

const (
	PanelTransport      PanelErrorKind = "transport"
	PanelTimeout        PanelErrorKind = "timeout"
	PanelHTTPStatus     PanelErrorKind = "http_status"
	PanelMalformed      PanelErrorKind = "malformed"
	PanelMissingOrderID PanelErrorKind = "missing_order_id"
)

// PanelError is returned by the ordering client for every failed call.
// StatusCode holds the raw HTTP status for PanelHTTPStatus, Detail the raw
// transport message or the panel's own "error" field when it sent one.
type PanelError struct {
	Kind       PanelErrorKind
	StatusCode int
	Detail     string
	Err        error
}

func (e *PanelError) Error() string {
	switch e.Kind {
	case PanelTimeout:
		return "request timed out"
	case PanelHTTPStatus:
		return fmt.Sprintf("panel returned HTTP %d", e.StatusCode)
	case PanelMissingOrderID:
		if e.Detail != "" {
			return "response lacked an order id: " + e.Detail
		}
		return "response lacked an order id"
	case PanelMalformed:
		return "malformed panel response: " + e.Detail
	default:
		return "panel request failed: " + e.Detail
	}
}

func (e *PanelError) Unwrap() error { return e.Err }

// AsPanelError extracts a *PanelError from err.
func AsPanelError(err error) (*PanelError, bool) {
	var pe *PanelError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsTimeout reports whether err is a panel timeout.
func IsTimeout(err error) bool {
	pe, ok := AsPanelError(err)
	return ok && pe.Kind == PanelTimeout
}
