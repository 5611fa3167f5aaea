package sync

const defaultRetryCount = 2

// Options are the operator-facing knobs of a sync run.
type Options struct {
	// ForceLocalRehash ignores prior mapping rows and always verifies
	// local files by content hash.
	ForceLocalRehash bool

	// OverwriteLocalMismatches resolves local-vs-remote divergence by
	// always preferring the remote copy.
	OverwriteLocalMismatches bool

	// UpdateWorldDb runs the world-database path migration after the
	// asset sync phase.
	UpdateWorldDb bool

	// RetryCount is the retry budget for network primitives (asset
	// download, local etag query, directory creation). Zero means the
	// default of 2.
	RetryCount int
}

func (o *Options) retries() int {
	if o.RetryCount <= 0 {
		return defaultRetryCount
	}
	return o.RetryCount
}
