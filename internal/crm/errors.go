package crm

import (
	"errors"
	"fmt"
)

// AuthError means the request was still unauthenticated after the single
// token refresh, or the refresh itself failed. Fatal for the current call;
// the caller logs and skips the address.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("crm: authentication failed: %s", e.Reason)
}

// IsAuthError reports whether err chains to an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// RequestError is any non-2xx CRM response other than 401. The caller
// decides whether it is fatal or skip-and-continue.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("crm: request failed with status %d: %s", e.Status, e.Body)
}

// IsRequestError reports whether err chains to a RequestError, returning it.
func IsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
