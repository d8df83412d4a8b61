// Package queue carries status-change events over RabbitMQ: the payload
// type, a publisher used by the services, and the consumer that appends
// each event to the audit log.
package queue

import "time"

// StatusChangedQueue is the durable queue every committed transition is
// published to.
const StatusChangedQueue = "participant.status.changed"

// Event kinds.
const (
	KindParticipantStatus = "participant_status"
	KindReturnOfService   = "return_of_service"
)

// StatusChangedEvent describes one committed write to a status history
// table.  PreviousID is the row it superseded, if any.
type StatusChangedEvent struct {
	EventID        string    `json:"event_id"`
	Kind           string    `json:"kind"`
	Action         string    `json:"action"`
	ParticipantID  int64     `json:"participant_id"`
	RecordID       int64     `json:"record_id"`
	PreviousID     *int64    `json:"previous_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	SiteID         *int64    `json:"site_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	ActorRole      string    `json:"actor_role"`
	OccurredAt     time.Time `json:"occurred_at"`
}
