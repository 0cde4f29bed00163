package executor

import "errors"

var (
	// ErrEntryAborted is recorded on an entry the mount could not serve.
	ErrEntryAborted = errors.New("executor: entry aborted")

	// ErrRunAborted is recorded on the entry that was interrupted by
	// cancellation.
	ErrRunAborted = errors.New("executor: run aborted")
)
