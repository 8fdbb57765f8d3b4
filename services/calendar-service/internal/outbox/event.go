package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted on schedule writes. Downstream consumers (booking,
// notification) react to these instead of polling the calendar tables.
const (
	EventScheduleUpdated = "calendar.schedule.updated.v1"
	EventPatternChanged  = "calendar.pattern.changed.v1"
	EventOverrideChanged = "calendar.override.changed.v1"
	EventCalendarCreated = "calendar.created.v1"
)
