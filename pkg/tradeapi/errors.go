package tradeapi

import "fmt"

// AuthenticationError means a login attempt was rejected by the identity
// endpoint. The session state is left exactly as it was before the attempt.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("login failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("login failed with status %d: %s", e.StatusCode, e.Message)
}

// LogoutError means the logout endpoint returned a non-200 response. The
// local token is retained so local state stays consistent with the server.
type LogoutError struct {
	StatusCode int
	Message    string
}

func (e *LogoutError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("logout failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("logout failed with status %d: %s", e.StatusCode, e.Message)
}

// APIRequestError means a trading or query endpoint returned a non-success
// status. Op names the operation that failed, Message carries whatever the
// server supplied.
type APIRequestError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIRequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// ValidationError means a caller-supplied filter or argument is outside its
// enumerated domain. It is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
