package sync

// Status is the lifecycle state of one sync run. Transitions are linear
// (Ready → Preparing → Syncing → PostSync → RewritingDb → terminal)
// except for Cancelled, which is reachable from any in-progress state.
type Status string

const (
	StatusReady               Status = "ready"
	StatusPreparing           Status = "preparing"
	StatusSyncing             Status = "syncing"
	StatusPostSync            Status = "post-sync"
	StatusRewritingDb         Status = "rewriting-database"
	StatusComplete            Status = "complete"
	StatusCompletedWithErrors Status = "completed-with-errors"
	StatusFailed              Status = "failed"
	StatusUnauthorized        Status = "unauthorized"
	StatusMissingKey          Status = "missing-key"
	StatusCancelled           Status = "cancelled"
)

// InProgress reports whether the run is between start and a terminal state.
func (s Status) InProgress() bool {
	switch s {
	case StatusPreparing, StatusSyncing, StatusPostSync, StatusRewritingDb:
		return true
	}
	return false
}

// Terminal reports whether the run has ended.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusCompletedWithErrors, StatusFailed,
		StatusUnauthorized, StatusMissingKey, StatusCancelled:
		return true
	}
	return false
}

// ExitCode maps a terminal status to a process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusComplete:
		return 0
	case StatusCompletedWithErrors:
		return 1
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
