// Package sync reconciles a site's hosted copy against its upstream source
// tree: trigger dispatch, the single-flight lease, the reconciliation
// engine, and the worker pool draining the job queue.
package sync

import "errors"

var (
	// ErrSyncInProgress is the single-flight conflict: another
	// reconciliation holds the site's sync lease.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidSignature is returned for webhook deliveries whose HMAC
	// does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Reconciliation stages, recorded on structured errors so callers can tell
// where a run died.
const (
	StageFetch  = "fetch"
	StageDiff   = "diff"
	StageApply  = "apply"
	StageCommit = "commit"
)

// Error is a structured reconciliation error carrying the stage that
// failed.
type Error struct {
	Err     error
	Message string
	Stage   string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageError(stage, message string, err error) *Error {
	return &Error{Err: err, Message: message, Stage: stage}
}
