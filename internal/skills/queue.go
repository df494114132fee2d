package skills

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxHistory bounds the in-memory execution history.
const maxHistory = 200

// requestIDLength is the number of chars kept from a UUID for request ids.
const requestIDLength = 8

// Logger is the logging interface used by the Queue.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// report is what the device sends back for one request id.
type report struct {
	success bool
	message string
	data    map[string]any
}

// Queue relays skill commands between server-side callers and a device
// that can only be reached by polling.
//
// Server side: Execute enqueues a command and blocks the caller until the
// device reports a result or the timeout elapses.
//
// Device side: Drain picks up all queued commands (at-most-once delivery),
// Report delivers a result and unblocks the matching caller.
//
// Each in-flight Execute owns a waiter: a buffered channel of capacity one
// in a mutex-guarded map. Whichever goroutine deletes the waiter entry from
// the map (under the mutex) wins the single permitted send/resolution; the
// losing path sees the entry gone and either discards its report or, on the
// timeout path, collects the already-delivered result from the channel.
// This guarantees exactly-once resolution and no dangling waiters.
//
// All methods are thread-safe.
type Queue struct {
	mu      sync.Mutex
	pending map[string]PendingSkill
	waiters map[string]chan report
	history []Result
	logger  Logger
}

// NewQueue creates an empty skill queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[string]PendingSkill),
		waiters: make(map[string]chan report),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// Execute queues a skill for the device and waits for its result.
//
// The call returns when one of the following happens, whichever is first:
//   - the device reports a result for this request id (Success as reported)
//   - timeout elapses (Success=false, timeout message)
//   - ctx is cancelled or the queue is cleared (Success=false, cancellation message)
//
// On every path the pending entry and the waiter are removed, so a late
// Report for this id returns false rather than corrupting a reused id.
// Concurrent calls are independent and resolve only to their own result.
func (q *Queue) Execute(ctx context.Context, skillName string, parameters map[string]any, timeout time.Duration) Result {
	requestID := uuid.NewString()[:requestIDLength]
	start := time.Now()

	ch := make(chan report, 1)
	q.mu.Lock()
	q.pending[requestID] = PendingSkill{
		RequestID:  requestID,
		SkillName:  skillName,
		Parameters: parameters,
		CreatedAt:  start.UTC(),
	}
	q.waiters[requestID] = ch
	q.mu.Unlock()

	q.logger.Info("skill queued", "request_id", requestID, "skill", skillName)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res Result
	select {
	case rep := <-ch:
		res = Result{
			RequestID: requestID,
			SkillName: skillName,
			Success:   rep.success,
			Message:   rep.message,
			Data:      rep.data,
			ElapsedMS: time.Since(start).Milliseconds(),
		}

	case <-timer.C:
		if rep, delivered := q.abandon(requestID, ch); delivered {
			// The device's report won the race with the timer; honour it.
			res = Result{
				RequestID: requestID,
				SkillName: skillName,
				Success:   rep.success,
				Message:   rep.message,
				Data:      rep.data,
				ElapsedMS: time.Since(start).Milliseconds(),
			}
		} else {
			res = Result{
				RequestID: requestID,
				SkillName: skillName,
				Success:   false,
				Message:   fmt.Sprintf("Timeout after %dms", timeout.Milliseconds()),
				ElapsedMS: timeout.Milliseconds(),
			}
			q.logger.Warn("skill timed out", "request_id", requestID, "skill", skillName)
		}

	case <-ctx.Done():
		if rep, delivered := q.abandon(requestID, ch); delivered {
			res = Result{
				RequestID: requestID,
				SkillName: skillName,
				Success:   rep.success,
				Message:   rep.message,
				Data:      rep.data,
				ElapsedMS: time.Since(start).Milliseconds(),
			}
		} else {
			res = Result{
				RequestID: requestID,
				SkillName: skillName,
				Success:   false,
				Message:   "Cancelled before completion",
				ElapsedMS: time.Since(start).Milliseconds(),
			}
		}
	}

	q.appendHistory(res)
	return res
}

// abandon removes the pending entry and waiter for requestID. If the waiter
// was already claimed by a reporter, the in-flight report is collected from
// the channel and returned with delivered=true.
func (q *Queue) abandon(requestID string, ch chan report) (rep report, delivered bool) {
	q.mu.Lock()
	_, waiting := q.waiters[requestID]
	delete(q.waiters, requestID)
	delete(q.pending, requestID)
	q.mu.Unlock()

	if waiting {
		return report{}, false
	}
	// Reporter removed the waiter first; its send to the buffered channel
	// happens under the queue mutex, so the result is already here.
	return <-ch, true
}

// Drain returns all pending skills and clears the pending set atomically.
// Called by device-side polling. A command handed out here is never handed
// out again; if the device drops it, the caller's Execute times out.
func (q *Queue) Drain() []PendingSkill {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := make([]PendingSkill, 0, len(q.pending))
	for _, p := range q.pending {
		drained = append(drained, p)
	}
	q.pending = make(map[string]PendingSkill)
	return drained
}

// Report delivers a device-side execution result for requestID, resolving
// the blocked Execute call. Returns false when no waiter exists (unknown id,
// or the caller already timed out); such reports are discarded.
func (q *Queue) Report(requestID string, success bool, message string, data map[string]any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.waiters[requestID]
	if !ok {
		q.logger.Warn("skill report with no waiter", "request_id", requestID)
		return false
	}
	delete(q.waiters, requestID)
	delete(q.pending, requestID) // usually already drained, but a report may arrive without a poll

	// Deleting the map entry above claimed the single resolution; the
	// channel has capacity one, so this never blocks.
	ch <- report{success: success, message: message, data: data}

	q.logger.Info("skill completed", "request_id", requestID, "success", success, "message", message)
	return true
}

// History returns up to limit most recent results, oldest first.
// limit <= 0 returns the default of 50.
func (q *Queue) History(limit int) []Result {
	if limit <= 0 {
		limit = 50
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	start := len(q.history) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Result, len(q.history)-start)
	copy(out, q.history[start:])
	return out
}

// PendingCount returns the number of commands awaiting pickup.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear drops all pending skills and cancels every in-flight Execute.
// Blocked callers receive an explicit cancellation result instead of
// hanging until their timeouts.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, ch := range q.waiters {
		delete(q.waiters, id)
		ch <- report{success: false, message: "Cancelled: queue cleared"}
	}
	q.pending = make(map[string]PendingSkill)
	q.history = nil

	q.logger.Info("skill queue cleared")
}

func (q *Queue) appendHistory(res Result) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.history = append(q.history, res)
	if len(q.history) > maxHistory {
		q.history = q.history[len(q.history)-maxHistory:]
	}
}
