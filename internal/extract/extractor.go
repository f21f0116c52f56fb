// Package extract produces a normalized BusinessRecord for one address by
// driving a rendered search session through the PageAutomator contract.
package extract

import (
	"context"
	"fmt"

	"github.com/sells-group/accountsync-cli/internal/model"
)

// ExtractionError means the collaborator could not produce a usable record
// for an address. Non-fatal: the caller skips the address without committing
// it, so the next pass retries.
type ExtractionError struct {
	Address string
	Reason  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s: %s", e.Address, e.Reason)
}

// Extractor produces a BusinessRecord for an address.
type Extractor interface {
	Extract(ctx context.Context, address string) (*model.BusinessRecord, error)
}
