// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCombineContext(t *testing.T) {
	t.Run("SecondaryCancelPropagates", func(t *testing.T) {
		parent := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := combineContext(parent, secondary)
		defer cancel()

		cancelSecondary()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe secondary cancellation")
		}
	})

	t.Run("ParentCancelPropagates", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.Background())
		combined, cancel := combineContext(parent, context.Background())
		defer cancel()

		cancelParent()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe parent cancellation")
		}
	})

	t.Run("ExplicitCancel", func(t *testing.T) {
		combined, cancel := combineContext(context.Background(), context.Background())
		cancel()
		require.Error(t, combined.Err())
	})
}

func TestSessionClose(t *testing.T) {
	t.Run("CancelsExactlyOnce", func(t *testing.T) {
		cancels := 0
		sess := newSession(context.Background(), func() { cancels++ }, zap.NewNop())

		require.NoError(t, sess.Close(context.Background()))
		require.NoError(t, sess.Close(context.Background()))
		require.NoError(t, sess.Close(context.Background()))

		assert.Equal(t, 1, cancels, "the underlying contexts must be released exactly once")
	})

	t.Run("HasStableID", func(t *testing.T) {
		sess := newSession(context.Background(), func() {}, zap.NewNop())
		require.NotEmpty(t, sess.ID())
		assert.Equal(t, sess.ID(), sess.ID())
	})
}
