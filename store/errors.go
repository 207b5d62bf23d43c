package store

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/crawlserv/crawlserv/errs"
)

// MySQL error numbers relevant to classification. See the MySQL manual,
// "Server Error Message Reference".
const (
	mysqlErrDupEntry          = 1062
	mysqlErrTableExists       = 1050
	mysqlErrLockDeadlock      = 1213
	mysqlErrLockWaitTimeout   = 1205
	mysqlErrAccessDenied      = 1045
	mysqlErrDBCreateExists    = 1007
	mysqlErrBadTableError     = 1146
	mysqlErrUnknownDatabase   = 1049
	mysqlErrDataTooLong       = 1406
	mysqlErrWrongValueForType = 1366
)

// classify maps a driver error to the §7 error taxonomy: Connection and
// lock-contention errors become Transient (retriable by
// withDeadlockRetry/the supervisor); constraint violations become Conflict
// or InvalidInput; everything else is Internal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrLockDeadlock, mysqlErrLockWaitTimeout:
			return errs.Wrap(errs.Transient, op, err)
		case mysqlErrDupEntry, mysqlErrDBCreateExists, mysqlErrTableExists:
			return errs.Wrap(errs.Conflict, op, err)
		case mysqlErrAccessDenied:
			return errs.Wrap(errs.PermissionDenied, op, err)
		case mysqlErrBadTableError, mysqlErrUnknownDatabase:
			return errs.Wrap(errs.NotFound, op, err)
		case mysqlErrDataTooLong, mysqlErrWrongValueForType:
			return errs.Wrap(errs.InvalidInput, op, err)
		}
		return errs.Wrap(errs.Internal, op, err)
	}

	// Driver-level connection failures (refused, reset, timed out before a
	// MySQL error packet was even returned) don't come back as
	// *mysql.MySQLError; treat them as Transient so the supervisor's bounded
	// reconnect loop (spec.md §4.3) applies.
	if errors.Is(err, mysql.ErrInvalidConn) {
		return errs.Wrap(errs.Transient, op, err)
	}

	return errs.Wrap(errs.Internal, op, err)
}
