package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusExitCode(t *testing.T) {
	assert.Equal(t, 0, StatusComplete.ExitCode())
	assert.Equal(t, 1, StatusCompletedWithErrors.ExitCode())
	assert.Equal(t, 3, StatusCancelled.ExitCode())
	assert.Equal(t, 2, StatusFailed.ExitCode())
	assert.Equal(t, 2, StatusUnauthorized.ExitCode())
	assert.Equal(t, 2, StatusMissingKey.ExitCode())
}

func TestStatusLifecycle(t *testing.T) {
	for _, s := range []Status{StatusPreparing, StatusSyncing, StatusPostSync, StatusRewritingDb} {
		assert.True(t, s.InProgress(), "%s", s)
		assert.False(t, s.Terminal(), "%s", s)
	}
	for _, s := range []Status{StatusComplete, StatusCompletedWithErrors, StatusFailed, StatusUnauthorized, StatusMissingKey, StatusCancelled} {
		assert.True(t, s.Terminal(), "%s", s)
		assert.False(t, s.InProgress(), "%s", s)
	}
	assert.False(t, StatusReady.InProgress())
	assert.False(t, StatusReady.Terminal())
}
