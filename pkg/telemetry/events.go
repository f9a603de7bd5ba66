package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in folio.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ProjectID is the associated project, if applicable.
	ProjectID int64 `json:"project_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for project lifecycle events.
const (
	EventTypeProjectCreated      = "project.created"
	EventTypeProjectDeleted      = "project.deleted"
	EventTypeProjectDeleteMissed = "project.delete_missed"
	EventTypeStoreError          = "store.error"
	EventTypeBackupCompleted     = "backup.completed"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}

		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishProjectCreated publishes a project created event.
func (ep *EventPublisher) PublishProjectCreated(id int64, title string) error {
	return ep.Publish(Event{
		Type:      EventTypeProjectCreated,
		Source:    "projects",
		ProjectID: id,
		Message:   fmt.Sprintf("Project %d created: %s", id, title),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"title": title,
		},
	})
}

// PublishProjectDeleted publishes a project deleted event. found reports
// whether a record was actually removed.
func (ep *EventPublisher) PublishProjectDeleted(id int64, found bool) error {
	if !found {
		return ep.Publish(Event{
			Type:      EventTypeProjectDeleteMissed,
			Source:    "projects",
			ProjectID: id,
			Message:   fmt.Sprintf("Project %d not found, nothing deleted", id),
			Level:     EventLevelInfo,
		})
	}
	return ep.Publish(Event{
		Type:      EventTypeProjectDeleted,
		Source:    "projects",
		ProjectID: id,
		Message:   fmt.Sprintf("Project %d deleted", id),
		Level:     EventLevelInfo,
	})
}

// PublishStoreError publishes a store failure event.
func (ep *EventPublisher) PublishStoreError(operation, kind string, err error) error {
	return ep.Publish(Event{
		Type:    EventTypeStoreError,
		Source:  "stores",
		Message: fmt.Sprintf("Store operation %s failed: %v", operation, err),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"operation": operation,
			"kind":      kind,
		},
	})
}

// PublishBackupCompleted publishes a backup completion event.
func (ep *EventPublisher) PublishBackupCompleted(dest string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeBackupCompleted,
		Source:  "backup",
		Message: fmt.Sprintf("Backup written to %s", dest),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"dest":     dest,
			"duration": duration.Seconds(),
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events in batches until shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Drain whatever is already queued, up to a batch
		drain:
			for len(batch) < ep.config.MaxBatchSize {
				select {
				case next := <-ep.buffer:
					batch = append(batch, next)
				default:
					break drain
				}
			}

			ep.flushBatch(batch)
			batch = batch[:0]

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					ep.flushBatch(batch)
					return
				}
			}
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers in subscription order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering every buffered event.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled || ep.cancel == nil {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByProjectID creates a filter that only allows events for a specific project.
func FilterByProjectID(id int64) EventFilter {
	return func(event Event) bool {
		return event.ProjectID == id
	}
}
