package auth

import "errors"

// Text shown to the user for each kind of failure.
const (
	MsgUnreachable        = "Unable to connect to authentication service. Please check your internet connection and try again."
	MsgSignOutUnreachable = "Unable to connect to authentication service. Please try again later."
	MsgInvalidCredentials = "Invalid email or password"
	MsgSessionExpired     = "Session expired. Please sign in again."
)

var (
	ErrUnreachable         = errors.New("auth service unreachable")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh_token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrNotAuthenticated    = errors.New("not authenticated")
)

// ProviderError is a failure reported by the auth provider whose message is
// shown to the user as is.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) Unwrap() error { return e.Err }

// signOutUnreachable matches ErrUnreachable but carries the sign-out wording.
type signOutUnreachable struct{}

func (signOutUnreachable) Error() string { return "auth service unreachable during sign-out" }

func (signOutUnreachable) Is(target error) bool { return target == ErrUnreachable }

// Message returns the text the user sees for err.
func Message(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.As(err, new(signOutUnreachable)):
		return MsgSignOutUnreachable
	case errors.Is(err, ErrUnreachable):
		return MsgUnreachable
	case errors.Is(err, ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, ErrInvalidRefreshToken):
		return MsgSessionExpired
	case errors.As(err, &pe):
		return pe.Message
	}
	return err.Error()
}

// classify folds any provider failure into the three kinds callers handle.
func classify(err error) error {
	var pe *ProviderError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnreachable),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.As(err, &pe):
		return err
	}
	return &ProviderError{Message: err.Error(), Err: err}
}
