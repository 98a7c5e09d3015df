// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Student events
	EventStudentRegistered  EventType = "student.registered"
	EventStudentDeactivated EventType = "student.deactivated"

	// Progress events
	EventLessonCompleted EventType = "progress.lesson_completed"
	EventLessonRegraded  EventType = "progress.lesson_regraded"
	EventLessonMastered  EventType = "progress.lesson_mastered"
	EventStarsEarned     EventType = "progress.stars_earned"

	// Reward events
	EventStarsSpent          EventType = "reward.stars_spent"
	EventRewardRedeemed      EventType = "reward.redeemed"
	EventRedemptionDelivered EventType = "reward.redemption_delivered"
	EventRedemptionCancelled EventType = "reward.redemption_cancelled"

	// Leaderboard events
	EventLeaderboardUpdated EventType = "leaderboard.updated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single domain event.
type EventHandler interface {
	Handle(event Event) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(event Event) error

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error {
	return f(event)
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// EnvelopeEvent is a minimal event carrying nothing beyond its identity.
// Used for lifecycle notifications like student.registered.
type EnvelopeEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e EnvelopeEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"aggregate_id": e.AggregateId,
	}
}

// NewBaseEventEnvelope wraps a bare event type and aggregate ID into an Event.
func NewBaseEventEnvelope(eventType EventType, aggregateID string) EnvelopeEvent {
	return EnvelopeEvent{BaseEvent: NewBaseEvent(eventType, aggregateID)}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent is emitted when a student is first credited for a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	LessonID    string `json:"lesson_id"`
	TeacherID   string `json:"teacher_id"`
	StarsEarned int    `json:"stars_earned"`
	NewBalance  int    `json:"new_balance"`
	Mastered    bool   `json:"mastered"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"lesson_id":    e.LessonID,
		"teacher_id":   e.TeacherID,
		"stars_earned": e.StarsEarned,
		"new_balance":  e.NewBalance,
		"mastered":     e.Mastered,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(studentID, lessonID, teacherID string, starsEarned, newBalance int, mastered bool) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:   NewBaseEvent(EventLessonCompleted, studentID),
		StudentID:   studentID,
		LessonID:    lessonID,
		TeacherID:   teacherID,
		StarsEarned: starsEarned,
		NewBalance:  newBalance,
		Mastered:    mastered,
	}
}

// LessonRegradedEvent is emitted when an existing, not yet mastered
// completion is updated with a new grade.
type LessonRegradedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	LessonID   string `json:"lesson_id"`
	OldStars   int    `json:"old_stars"`
	NewStars   int    `json:"new_stars"`
	Delta      int    `json:"delta"`
	NewBalance int    `json:"new_balance"`
}

// Payload implements Event interface.
func (e LessonRegradedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"lesson_id":   e.LessonID,
		"old_stars":   e.OldStars,
		"new_stars":   e.NewStars,
		"delta":       e.Delta,
		"new_balance": e.NewBalance,
	}
}

// NewLessonRegradedEvent creates a new LessonRegradedEvent.
func NewLessonRegradedEvent(studentID, lessonID string, oldStars, newStars, newBalance int) LessonRegradedEvent {
	return LessonRegradedEvent{
		BaseEvent:  NewBaseEvent(EventLessonRegraded, studentID),
		StudentID:  studentID,
		LessonID:   lessonID,
		OldStars:   oldStars,
		NewStars:   newStars,
		Delta:      newStars - oldStars,
		NewBalance: newBalance,
	}
}

// StarsEarnedEvent is emitted whenever a student's balance is credited.
type StarsEarnedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	Amount     int    `json:"amount"`
	NewBalance int    `json:"new_balance"`
	LessonID   string `json:"lesson_id,omitempty"`
}

// Payload implements Event interface.
func (e StarsEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
		"lesson_id":   e.LessonID,
	}
}

// NewStarsEarnedEvent creates a new StarsEarnedEvent.
func NewStarsEarnedEvent(studentID string, amount, newBalance int, lessonID string) StarsEarnedEvent {
	return StarsEarnedEvent{
		BaseEvent:  NewBaseEvent(EventStarsEarned, studentID),
		StudentID:  studentID,
		Amount:     amount,
		NewBalance: newBalance,
		LessonID:   lessonID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// RewardRedeemedEvent is emitted after a redemption batch commits.
type RewardRedeemedEvent struct {
	BaseEvent
	StudentID     string   `json:"student_id"`
	RedemptionIDs []string `json:"redemption_ids"`
	TotalCost     int      `json:"total_cost"`
	NewBalance    int      `json:"new_balance"`
}

// Payload implements Event interface.
func (e RewardRedeemedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"redemption_ids": e.RedemptionIDs,
		"total_cost":     e.TotalCost,
		"new_balance":    e.NewBalance,
	}
}

// NewRewardRedeemedEvent creates a new RewardRedeemedEvent.
func NewRewardRedeemedEvent(studentID string, redemptionIDs []string, totalCost, newBalance int) RewardRedeemedEvent {
	return RewardRedeemedEvent{
		BaseEvent:     NewBaseEvent(EventRewardRedeemed, studentID),
		StudentID:     studentID,
		RedemptionIDs: redemptionIDs,
		TotalCost:     totalCost,
		NewBalance:    newBalance,
	}
}

// RedemptionCancelledEvent is emitted when a pending redemption is cancelled
// and its stars refunded.
type RedemptionCancelledEvent struct {
	BaseEvent
	StudentID    string `json:"student_id"`
	RedemptionID string `json:"redemption_id"`
	Refunded     int    `json:"refunded"`
	NewBalance   int    `json:"new_balance"`
}

// Payload implements Event interface.
func (e RedemptionCancelledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"redemption_id": e.RedemptionID,
		"refunded":      e.Refunded,
		"new_balance":   e.NewBalance,
	}
}

// NewRedemptionCancelledEvent creates a new RedemptionCancelledEvent.
func NewRedemptionCancelledEvent(studentID, redemptionID string, refunded, newBalance int) RedemptionCancelledEvent {
	return RedemptionCancelledEvent{
		BaseEvent:    NewBaseEvent(EventRedemptionCancelled, studentID),
		StudentID:    studentID,
		RedemptionID: redemptionID,
		Refunded:     refunded,
		NewBalance:   newBalance,
	}
}
