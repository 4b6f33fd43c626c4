// internal/executor/queue.go
package executor

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/types"
)

// ExitQueue is the bounded, ordered, multi-producer single-consumer channel
// between exit-intent producers and the position executor. Commands pop
// highest urgency first, then oldest first. At most one command per position
// is queued; a second command for the same position only survives if it is
// more urgent than the one already waiting.
type ExitQueue struct {
	mu       sync.Mutex
	items    commandHeap
	byPos    map[string]*queuedCommand
	capacity int
	seq      uint64
	notify   chan struct{}
	logger   *zap.Logger
}

type queuedCommand struct {
	cmd   types.ExitCommand
	seq   uint64
	index int // heap index, -1 when removed
}

// NewExitQueue creates a queue holding at most capacity commands.
func NewExitQueue(capacity int, logger *zap.Logger) *ExitQueue {
	return &ExitQueue{
		byPos:    make(map[string]*queuedCommand),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		logger:   logger.Named("exit_queue"),
	}
}

// Push enqueues a command. Returns an error only when the queue is full of
// commands at least as urgent; a duplicate position id is resolved silently
// in favor of the more urgent command.
func (q *ExitQueue) Push(cmd types.ExitCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byPos[cmd.PositionID]; ok {
		if cmd.Urgency <= existing.cmd.Urgency {
			return nil
		}
		q.logger.Debug("Upgrading queued exit command",
			zap.String("position", cmd.PositionID),
			zap.String("old_urgency", existing.cmd.Urgency.String()),
			zap.String("new_urgency", cmd.Urgency.String()))
		existing.cmd = cmd
		heap.Fix(&q.items, existing.index)
		q.wake()
		return nil
	}

	if len(q.items) >= q.capacity {
		victim := q.leastUrgentLocked()
		if victim == nil || cmd.Urgency <= victim.cmd.Urgency {
			return fmt.Errorf("exit queue full (%d), dropping %s command for position %s",
				q.capacity, cmd.Urgency, cmd.PositionID)
		}
		heap.Remove(&q.items, victim.index)
		delete(q.byPos, victim.cmd.PositionID)
		q.logger.Warn("Exit queue full, evicting least urgent command",
			zap.String("evicted_position", victim.cmd.PositionID),
			zap.String("evicted_urgency", victim.cmd.Urgency.String()))
	}

	qc := &queuedCommand{cmd: cmd, seq: q.nextSeq()}
	heap.Push(&q.items, qc)
	q.byPos[cmd.PositionID] = qc
	q.wake()
	return nil
}

// Pop blocks until a command is available or the context ends.
func (q *ExitQueue) Pop(ctx context.Context) (types.ExitCommand, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			qc := heap.Pop(&q.items).(*queuedCommand)
			delete(q.byPos, qc.cmd.PositionID)
			if len(q.items) > 0 {
				q.wake()
			}
			q.mu.Unlock()
			return qc.cmd, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return types.ExitCommand{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// TryPop returns the next command without blocking.
func (q *ExitQueue) TryPop() (types.ExitCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return types.ExitCommand{}, false
	}
	qc := heap.Pop(&q.items).(*queuedCommand)
	delete(q.byPos, qc.cmd.PositionID)
	return qc.cmd, true
}

// Len returns the number of queued commands.
func (q *ExitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ExitQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *ExitQueue) nextSeq() uint64 {
	q.seq++
	return q.seq
}

func (q *ExitQueue) leastUrgentLocked() *queuedCommand {
	var victim *queuedCommand
	for _, qc := range q.items {
		if victim == nil {
			victim = qc
			continue
		}
		if qc.cmd.Urgency < victim.cmd.Urgency ||
			(qc.cmd.Urgency == victim.cmd.Urgency && qc.seq > victim.seq) {
			victim = qc
		}
	}
	return victim
}

// commandHeap orders by urgency descending, then insertion order ascending.
type commandHeap []*queuedCommand

func (h commandHeap) Len() int { return len(h) }

func (h commandHeap) Less(i, j int) bool {
	if h[i].cmd.Urgency != h[j].cmd.Urgency {
		return h[i].cmd.Urgency > h[j].cmd.Urgency
	}
	return h[i].seq < h[j].seq
}

func (h commandHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *commandHeap) Push(x interface{}) {
	qc := x.(*queuedCommand)
	qc.index = len(*h)
	*h = append(*h, qc)
}

func (h *commandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	qc := old[n-1]
	qc.index = -1
	old[n-1] = nil
	*h = old[:n-1]
	return qc
}
