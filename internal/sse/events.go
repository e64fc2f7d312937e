// Package sse streams per-user change notifications to connected clients.
package sse

import (
	"time"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

// EventType is the SSE event name.
type EventType string

const (
	EventWineCreated EventType = "wine.created"
	EventWineUpdated EventType = "wine.updated"
	EventWineDeleted EventType = "wine.deleted"
	// EventWinesErased is one event for a whole erase batch.
	EventWinesErased EventType = "wine.erased"

	EventExperiencedCreated EventType = "experienced.created"
	EventExperiencedUpdated EventType = "experienced.updated"
	EventExperiencedDeleted EventType = "experienced.deleted"

	EventCellarCreated    EventType = "cellar.created"
	EventCellarDeleted    EventType = "cellar.deleted"
	EventCellarReassigned EventType = "cellar.reassigned"
	EventCellarActivated  EventType = "cellar.activated"

	// EventNotice carries user-visible errors and informational messages.
	EventNotice EventType = "notice"

	EventHeartbeat EventType = "heartbeat"
)

// Event is a single message on a user's stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID scopes delivery. Empty broadcasts to every client.
	UserID string `json:"-"`
}

// WineEventData is the payload for wine.created and wine.updated.
type WineEventData struct {
	Wine *domain.Wine `json:"wine"`
}

// WineDeletedEventData is the payload for wine.deleted.
type WineDeletedEventData struct {
	WineID string `json:"wineId"`
}

// WinesErasedEventData is the payload for wine.erased.
type WinesErasedEventData struct {
	// CellarID is empty when every cellar was erased.
	CellarID string `json:"cellarId"`
	Count    int    `json:"count"`
}

// ExperiencedEventData is the payload for experienced.created and experienced.updated.
type ExperiencedEventData struct {
	Experienced *domain.ExperiencedWine `json:"experienced"`
}

// ExperiencedDeletedEventData is the payload for experienced.deleted.
// Restored is set when the record went back to the active collection.
type ExperiencedDeletedEventData struct {
	WineID   string `json:"wineId"`
	Restored bool   `json:"restored"`
}

// CellarEventData is the payload for cellar.created.
type CellarEventData struct {
	Cellar *domain.Cellar `json:"cellar"`
}

// CellarDeletedEventData is the payload for cellar.deleted.
type CellarDeletedEventData struct {
	CellarID     string                `json:"cellarId"`
	ReassignedTo string                `json:"reassignedTo,omitempty"`
	Moved        domain.ReassignResult `json:"moved"`
}

// CellarReassignedEventData is the payload for cellar.reassigned.
type CellarReassignedEventData struct {
	From  string                `json:"from"`
	To    string                `json:"to"`
	Moved domain.ReassignResult `json:"moved"`
}

// CellarActivatedEventData is the payload for cellar.activated.
type CellarActivatedEventData struct {
	CellarID string `json:"cellarId"`
}

// NoticeLevel grades a notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// NoticeEventData is the payload for notice events.
type NoticeEventData struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

// HeartbeatEventData is the payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

func newEvent(userID string, t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now(), UserID: userID}
}

// NewWineCreatedEvent creates a wine.created event.
func NewWineCreatedEvent(userID string, w *domain.Wine) Event {
	return newEvent(userID, EventWineCreated, WineEventData{Wine: w})
}

// NewWineUpdatedEvent creates a wine.updated event.
func NewWineUpdatedEvent(userID string, w *domain.Wine) Event {
	return newEvent(userID, EventWineUpdated, WineEventData{Wine: w})
}

// NewWineDeletedEvent creates a wine.deleted event.
func NewWineDeletedEvent(userID, wineID string) Event {
	return newEvent(userID, EventWineDeleted, WineDeletedEventData{WineID: wineID})
}

// NewWinesErasedEvent creates a wine.erased event.
func NewWinesErasedEvent(userID, cellarID string, count int) Event {
	return newEvent(userID, EventWinesErased, WinesErasedEventData{CellarID: cellarID, Count: count})
}

// NewExperiencedCreatedEvent creates an experienced.created event.
func NewExperiencedCreatedEvent(userID string, e *domain.ExperiencedWine) Event {
	return newEvent(userID, EventExperiencedCreated, ExperiencedEventData{Experienced: e})
}

// NewExperiencedUpdatedEvent creates an experienced.updated event.
func NewExperiencedUpdatedEvent(userID string, e *domain.ExperiencedWine) Event {
	return newEvent(userID, EventExperiencedUpdated, ExperiencedEventData{Experienced: e})
}

// NewExperiencedDeletedEvent creates an experienced.deleted event.
func NewExperiencedDeletedEvent(userID, wineID string, restored bool) Event {
	return newEvent(userID, EventExperiencedDeleted, ExperiencedDeletedEventData{WineID: wineID, Restored: restored})
}

// NewCellarCreatedEvent creates a cellar.created event.
func NewCellarCreatedEvent(userID string, c *domain.Cellar) Event {
	return newEvent(userID, EventCellarCreated, CellarEventData{Cellar: c})
}

// NewCellarDeletedEvent creates a cellar.deleted event.
func NewCellarDeletedEvent(userID, cellarID, reassignedTo string, moved domain.ReassignResult) Event {
	return newEvent(userID, EventCellarDeleted, CellarDeletedEventData{
		CellarID:     cellarID,
		ReassignedTo: reassignedTo,
		Moved:        moved,
	})
}

// NewCellarReassignedEvent creates a cellar.reassigned event.
func NewCellarReassignedEvent(userID, from, to string, moved domain.ReassignResult) Event {
	return newEvent(userID, EventCellarReassigned, CellarReassignedEventData{From: from, To: to, Moved: moved})
}

// NewCellarActivatedEvent creates a cellar.activated event.
func NewCellarActivatedEvent(userID, cellarID string) Event {
	return newEvent(userID, EventCellarActivated, CellarActivatedEventData{CellarID: cellarID})
}

// NewNoticeEvent creates a notice event.
func NewNoticeEvent(userID string, level NoticeLevel, code, message string) Event {
	return newEvent(userID, EventNotice, NoticeEventData{Level: level, Code: code, Message: message})
}

// NewHeartbeatEvent creates a heartbeat event for every client.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
