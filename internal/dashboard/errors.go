/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dashboard

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// ErrStoreUnavailable marks connectivity, auth, or timeout failures against the
// relational store. Callers surface it as a server error; the request is not
// retried here.
var ErrStoreUnavailable = errors.New("store unavailable")

// QueryError marks a query the store rejected (schema drift, bad SQL). It
// carries the failing operation name for logs and traces.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// wrap classifies a store failure. Connection level problems collapse into
// ErrStoreUnavailable; everything else is a QueryError for the operation.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	return &QueryError{Op: op, Err: err}
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
