package user

import "time"

const EventDeleted = "user.deleted"

// Deleted is raised once an account row is gone. Consumers purge whatever the
// account left behind in other stores.
type Deleted struct {
	UserID ID        `json:"userId"`
	At     time.Time `json:"at"`
}

func (e Deleted) EventName() string {
	return EventDeleted
}

func (e Deleted) AggregateID() string {
	return e.UserID.String()
}

func (e Deleted) OccurredAt() time.Time {
	return e.At
}
