package platform

import (
	"errors"
	"fmt"
)

// ErrUnavailable is an exported constant or variable used by the flow engine.
var ErrUnavailable = errors.New("identity platform unavailable")

// Error is a structured platform API rejection. Message is the platform's own
// text and is surfaced verbatim to callers; the flow engine classifies it
// (device-limit detection, anomaly handling) without re-wording it.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// AsError extracts a platform [*Error] from err, if one is present in its chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
