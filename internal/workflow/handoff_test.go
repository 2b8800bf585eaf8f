// internal/workflow/handoff_test.go
package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMonitorAwait(t *testing.T) {
	t.Run("ReturnsWhenProbeFails", func(t *testing.T) {
		sess := &fakeSession{probeSuccesses: 3}
		monitor := NewMonitor(time.Millisecond, zap.NewNop())

		err := monitor.Await(context.Background(), sess)
		require.NoError(t, err)
		assert.Equal(t, 4, sess.locationCalls, "the failing probe is the last one made")
	})

	t.Run("FirstProbeAlreadyFailed", func(t *testing.T) {
		sess := &fakeSession{}
		monitor := NewMonitor(time.Millisecond, zap.NewNop())

		require.NoError(t, monitor.Await(context.Background(), sess))
		assert.Equal(t, 1, sess.locationCalls)
	})

	t.Run("ContextCancellationInterrupts", func(t *testing.T) {
		sess := &fakeSession{probeSuccesses: 1 << 30}
		monitor := NewMonitor(10*time.Millisecond, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- monitor.Await(ctx, sess)
		}()

		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("Await did not observe cancellation")
		}
	})
}
