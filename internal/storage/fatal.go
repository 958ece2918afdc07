package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"sync"
)

// Classifier reports whether a backend-specific error means the session is
// gone (as opposed to a failure of one statement).
type Classifier func(error) bool

var (
	classMu     sync.RWMutex
	classifiers []Classifier
)

// RegisterFatal adds a backend classifier consulted by Fatal.
func RegisterFatal(c Classifier) {
	classMu.Lock()
	defer classMu.Unlock()
	classifiers = append(classifiers, c)
}

// Fatal reports whether err should abort the current table instead of being
// recorded as a failed batch: a cancelled context, a network failure or a
// session a backend classifier reports as lost.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	classMu.RLock()
	defer classMu.RUnlock()
	for _, c := range classifiers {
		if c(err) {
			return true
		}
	}
	return false
}
