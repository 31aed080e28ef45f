package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"stakehouse/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
)

// transientSQLStates are server errors a caller may retry unchanged
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// classify marks connection, timeout and retryable server failures as
// entities.ErrTransientIO. Other errors are returned unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, entities.ErrTransientIO) {
		return err
	}

	if isTransient(err) {
		return fmt.Errorf("%w: %w", entities.ErrTransientIO, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection_exception
		return transientSQLStates[pgErr.Code] || (len(pgErr.Code) == 5 && pgErr.Code[:2] == "08")
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
