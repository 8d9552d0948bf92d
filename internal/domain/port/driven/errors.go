package driven

import (
	"errors"
	"fmt"
)

// ErrRunNotRunning is returned when finalizing a run that is not in the
// running state.
var ErrRunNotRunning = errors.New("sync run is not running")

// ErrNoValidToken is returned when no OAuth credential has ever been
// established. It is recoverable by completing the authorization flow.
var ErrNoValidToken = errors.New("no valid provider token: complete the OAuth authorization")

// UpstreamHTTPError is returned when the provider answers with a non-2xx
// status after any retry.
type UpstreamHTTPError struct {
	Status int
	Body   string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream http %d: %s", e.Status, e.Body)
}

// NetworkError wraps a transport-level failure talking to the provider.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
