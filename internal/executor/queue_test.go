// internal/executor/queue_test.go
package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quietlabs/edgebot/internal/types"
)

func TestQueueOrdersByUrgencyThenAge(t *testing.T) {
	q := NewExitQueue(16, zaptest.NewLogger(t))

	require.NoError(t, q.Push(types.NewExitCommand("pA", types.ExitTimeLimit, 1, "monitor")))
	require.NoError(t, q.Push(types.NewExitCommand("pB", types.ExitTakeProfit, 1, "monitor")))
	require.NoError(t, q.Push(types.NewExitCommand("pC", types.ExitEmergency, 1, "monitor")))
	require.NoError(t, q.Push(types.NewExitCommand("pD", types.ExitTakeProfit, 1, "monitor")))

	var order []string
	for {
		cmd, ok := q.TryPop()
		if !ok {
			break
		}
		order = append(order, cmd.PositionID)
	}
	// Critical first, then the two normals oldest-first, then low.
	assert.Equal(t, []string{"pC", "pB", "pD", "pA"}, order)
}

func TestQueueDedupKeepsMoreUrgent(t *testing.T) {
	q := NewExitQueue(16, zaptest.NewLogger(t))

	require.NoError(t, q.Push(types.NewExitCommand("pA", types.ExitTakeProfit, 0.5, "monitor")))
	// Manual command for the same position upgrades it in place.
	require.NoError(t, q.Push(types.NewExitCommand("pA", types.ExitManual, 1, "admin")))
	assert.Equal(t, 1, q.Len())

	cmd, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, types.ExitManual, cmd.Reason)
	assert.Equal(t, types.UrgencyHigh, cmd.Urgency)

	// A less urgent duplicate is dropped silently.
	require.NoError(t, q.Push(types.NewExitCommand("pB", types.ExitStopLoss, 1, "monitor")))
	require.NoError(t, q.Push(types.NewExitCommand("pB", types.ExitTimeLimit, 1, "monitor")))
	cmd, _ = q.TryPop()
	assert.Equal(t, types.ExitStopLoss, cmd.Reason)
	assert.Equal(t, 0, q.Len())
}

func TestQueueFullEvictsLeastUrgent(t *testing.T) {
	q := NewExitQueue(2, zaptest.NewLogger(t))

	require.NoError(t, q.Push(types.NewExitCommand("pA", types.ExitTimeLimit, 1, "monitor")))
	require.NoError(t, q.Push(types.NewExitCommand("pB", types.ExitTakeProfit, 1, "monitor")))

	// An emergency bumps the least urgent command out.
	require.NoError(t, q.Push(types.NewExitCommand("pC", types.ExitEmergency, 1, "monitor")))
	assert.Equal(t, 2, q.Len())

	// A low-urgency command against a full queue of equal-or-higher urgency
	// is refused.
	err := q.Push(types.NewExitCommand("pD", types.ExitTimeLimit, 1, "monitor"))
	require.Error(t, err)

	first, _ := q.TryPop()
	second, _ := q.TryPop()
	assert.Equal(t, "pC", first.PositionID)
	assert.Equal(t, "pB", second.PositionID)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewExitQueue(16, zaptest.NewLogger(t))

	done := make(chan types.ExitCommand, 1)
	go func() {
		cmd, err := q.Pop(context.Background())
		if err == nil {
			done <- cmd
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(types.NewExitCommand("pA", types.ExitStopLoss, 1, "monitor")))

	select {
	case cmd := <-done:
		assert.Equal(t, "pA", cmd.PositionID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestQueuePopHonorsContext(t *testing.T) {
	q := NewExitQueue(16, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
