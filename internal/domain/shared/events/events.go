package events

import "time"

// DomainEvent is implemented by every fact a domain package raises after a
// state change has been persisted.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}
