// Package events distributes run progress between the engine and attached UIs
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single notification published on the bus
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Event types
const (
	EventTypeRunStarted         = "run_started"
	EventTypePhaseChanged       = "phase_changed"
	EventTypeArtifactGenerated  = "artifact_generated"
	EventTypeApprovalRequested  = "approval_requested"
	EventTypeApprovalResolved   = "approval_resolved"
	EventTypeExecutionCompleted = "execution_completed"
	EventTypeRunFinished        = "run_finished"
	EventTypeError              = "error"
)

// EventBus fans events out to named subscribers
type EventBus struct {
	subscribers map[string]chan Event
	mutex       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe adds a new subscriber to the event bus. Subscribing twice
// under one name replaces the previous channel.
func (eb *EventBus) Subscribe(name string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if old, exists := eb.subscribers[name]; exists {
		close(old)
	}
	ch := make(chan Event, 100)
	eb.subscribers[name] = ch
	return ch
}

// Unsubscribe removes a subscriber from the event bus
func (eb *EventBus) Unsubscribe(name string) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if ch, exists := eb.subscribers[name]; exists {
		delete(eb.subscribers, name)
		close(ch)
	}
}

// SubscriberCount reports how many subscribers are attached
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// Publish broadcasts an event to all subscribers. Slow subscribers whose
// buffer is full miss the event; the engine is never blocked.
func (eb *EventBus) Publish(eventType, runID string, data any) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}

	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// PhaseChangedEvent describes a state machine transition
func PhaseChangedEvent(from, to, note string) map[string]any {
	return map[string]any{
		"from": from,
		"to":   to,
		"note": note,
	}
}

// ArtifactEvent describes a generated artifact
func ArtifactEvent(kind, path string, attempt int, content string) map[string]any {
	return map[string]any{
		"kind":    kind,
		"path":    path,
		"attempt": attempt,
		"content": content,
	}
}

// ApprovalRequestedEvent announces a pending review that remote clients may resolve
func ApprovalRequestedEvent(requestID, kind, path string, attempt int, content string) map[string]any {
	data := ArtifactEvent(kind, path, attempt, content)
	data["request_id"] = requestID
	return data
}

// ApprovalResolvedEvent records the decision taken on a review
func ApprovalResolvedEvent(requestID, action, note string) map[string]any {
	return map[string]any{
		"request_id": requestID,
		"action":     action,
		"note":       note,
	}
}

// ExecutionCompletedEvent summarises one test execution
func ExecutionCompletedEvent(withImplementation bool, status string, passed, failed, errors int, timedOut bool, duration time.Duration) map[string]any {
	return map[string]any{
		"with_implementation": withImplementation,
		"status":              status,
		"passed":              passed,
		"failed":              failed,
		"errors":              errors,
		"timed_out":           timedOut,
		"duration_ms":         duration.Milliseconds(),
	}
}

// RunFinishedEvent carries the terminal outcome of a run
func RunFinishedEvent(outcome, reason, diagnostic string) map[string]any {
	return map[string]any{
		"outcome":    outcome,
		"reason":     reason,
		"diagnostic": diagnostic,
	}
}

// ErrorEvent creates an error event
func ErrorEvent(message string, err error) map[string]any {
	data := map[string]any{"message": message}
	if err != nil {
		data["error"] = err.Error()
	}
	return data
}
