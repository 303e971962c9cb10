// Package events provides event handling functionality
package events

import (
	"context"
	"sync"

	"github.com/celestiaorg/docconv/internal/logger"
)

// EventType represents the type of job event
type EventType string

const (
	// EventJobUpdated is emitted on every job state change
	EventJobUpdated EventType = "job_updated"
	// EventJobProgress is emitted when a converter reports pages done
	EventJobProgress EventType = "job_progress"
	// EventChannelSize is the buffer size for the event channel
	EventChannelSize = 100
)

// Event represents a job event
type Event struct {
	Type           EventType `json:"type"`
	JobID          string    `json:"jobId"`
	State          string    `json:"state,omitempty"`
	ErrorCode      int       `json:"errorCode,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	PagesConverted int       `json:"pagesConverted,omitempty"`
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

// Publisher accepts events without blocking
type Publisher interface {
	Publish(event Event)
}

// Bus fans events out to subscribed handlers
type Bus struct {
	handlers   map[EventType][]Handler
	handlersMu sync.RWMutex
	eventChan  chan Event
}

var _ Publisher = &Bus{}

// NewBus creates a bus with a buffered event channel
func NewBus() *Bus {
	return &Bus{
		handlers:  make(map[EventType][]Handler),
		eventChan: make(chan Event, EventChannelSize),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	logger.Debugf("Registered handler for event type: %s", eventType)
}

// Publish queues an event. When the buffer is full the event is dropped so a
// slow consumer never stalls a conversion.
func (b *Bus) Publish(event Event) {
	select {
	case b.eventChan <- event:
		logger.Debugf("Published event: %s (Job: %s)", event.Type, event.JobID)
	default:
		logger.Warnf("Event buffer full, dropping %s for job %s", event.Type, event.JobID)
	}
}

// Start starts the event processing loop
func (b *Bus) Start(ctx context.Context) {
	go b.processEvents(ctx)
	logger.Info("Started event processing loop")
}

// processEvents handles events in the background
func (b *Bus) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping event processing loop")
			return
		case event := <-b.eventChan:
			b.handlersMu.RLock()
			eventHandlers := b.handlers[event.Type]
			b.handlersMu.RUnlock()

			// handlers run in order so a subscriber sees a job's events in sequence
			for _, h := range eventHandlers {
				if err := h(ctx, event); err != nil {
					logger.Errorf("Failed to handle event %s for job %s: %v", event.Type, event.JobID, err)
				}
			}
		}
	}
}

// Discard is a Publisher that drops everything
type Discard struct{}

// Publish implements Publisher
func (Discard) Publish(Event) {}
