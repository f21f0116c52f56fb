// Package automation drives the CRM's interactive edit session to attach
// slot images to a record. The rendering engine behind the page is an
// external collaborator reached only through the PageAutomator contract, so
// the whole flow is testable against a fake driver.
package automation

import (
	"context"
	"time"
)

// PageAutomator is the capability contract for a rendered browser session.
// Implementations own a single stateful page; callers must never drive two
// flows through one automator concurrently.
type PageAutomator interface {
	// Navigate loads url and blocks until the page is ready or ctx ends.
	Navigate(ctx context.Context, url string) error

	// WaitFor reports whether an element matching selector appears within
	// timeout. It never blocks past the timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) bool

	// Click attempts to click the element and reports whether it succeeded.
	// A missing element is a false, not an error.
	Click(ctx context.Context, selector string) bool

	// SendKeys types text into the element matching selector.
	SendKeys(ctx context.Context, selector, text string) error

	// GetText returns the element's visible text.
	GetText(ctx context.Context, selector string) (string, error)

	// GetAttribute returns the named attribute of the element.
	GetAttribute(ctx context.Context, selector, name string) (string, error)
}
