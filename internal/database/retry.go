package database

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	retryAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// Retry runs op up to three times, waiting 500ms, then 1s, between attempts.
// Only errors classified as transient by the driver are retried.
func Retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

// IsTransient reports whether an error is worth retrying. Classification is
// typed per driver rather than matched against error text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions. 53xxx: insufficient resources.
		switch {
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return true
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "53":
			return true
		case pgErr.Code == "40001": // serialization failure
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1040, 1203: // too many connections
			return true
		case 1205, 1213: // lock wait timeout, deadlock
			return true
		case 2002, 2003, 2006, 2013: // server gone or unreachable
			return true
		}
		return false
	}

	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}
