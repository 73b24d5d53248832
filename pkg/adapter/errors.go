package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = fmt.Errorf("database connection not established: %w", core.ErrStoreUnavailable)

// StatementError reports which statement of a transactional batch failed.
type StatementError struct {
	Index int
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v", e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Classify marks connectivity failures with core.ErrStoreUnavailable.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, core.ErrStoreUnavailable) {
		return err
	}
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return err
}
