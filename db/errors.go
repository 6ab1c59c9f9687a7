package db

import (
	"strings"

	"github.com/teranos/finkg/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed matches ErrDatabaseClosed and the raw driver message,
// which database/sql returns unwrapped.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
