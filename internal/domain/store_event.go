package domain

import "strconv"

// StoreEventType names a store mutation observers can react to.
type StoreEventType string

const (
	EventLogAdded      StoreEventType = "logAdded"
	EventStatusUpdated StoreEventType = "statusUpdated"
	EventDeleted       StoreEventType = "deleted"
)

// AllRecords is the StoreEvent.ID used by bulk status updates.
const AllRecords = "all"

// StoreEvent is published on the event bus after a store mutation commits.
// Owner is the inbox the mutation touched; it is not sent to clients.
type StoreEvent struct {
	Owner  string              `json:"-"`
	Type   StoreEventType      `json:"type"`
	Record *NotificationRecord `json:"record,omitempty"`
	ID     string              `json:"id,omitempty"`
	Status RecordStatus        `json:"status,omitempty"`
}

func LogAdded(rec NotificationRecord) StoreEvent {
	return StoreEvent{Owner: rec.Owner, Type: EventLogAdded, Record: &rec, ID: RecordKey(rec.ID)}
}

func StatusUpdated(owner, id string, status RecordStatus) StoreEvent {
	return StoreEvent{Owner: owner, Type: EventStatusUpdated, ID: id, Status: status}
}

func Deleted(owner string, id int64) StoreEvent {
	return StoreEvent{Owner: owner, Type: EventDeleted, ID: RecordKey(id)}
}

// RecordKey formats a record id the way store events carry it.
func RecordKey(id int64) string { return strconv.FormatInt(id, 10) }
