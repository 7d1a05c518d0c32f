package remote

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotConnected is returned by operations attempted without a gateway.
	ErrNotConnected = errors.New("remote backend not connected")
	// ErrInvalidPayload marks a queued payload that can never be applied.
	ErrInvalidPayload = errors.New("invalid sync payload")
)

// IsPermanent reports whether retrying err can never succeed: data,
// integrity and syntax errors from Postgres, and undecodable payloads.
// Network, auth and deadline errors are transient, and so is a foreign key
// violation: the parent row may still be on its way.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidPayload) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := strings.TrimSpace(pgErr.Code)
		if len(code) < 2 {
			return false
		}
		switch code[:2] {
		case "22", "42": // data_exception, syntax_error_or_access_rule_violation
			return true
		case "23": // integrity_constraint_violation
			return code != "23503"
		}
	}
	return false
}
