// Package app contains the application layer - service implementations and effect execution.
package app

import "errors"

// ErrRefreshAndRetry wraps store conflicts and misses seen at write time.
// The caller should reload the records and try the action again.
var ErrRefreshAndRetry = errors.New("incident changed, refresh and retry")

// ErrReopenDisabled is returned when lifecycle.allow_reopen is off.
var ErrReopenDisabled = errors.New("reopening incidents is disabled")
