package outbox

import "example.com/runlog/internal/events"

const snapshotSavedSchema = `{
  "type": "object",
  "title": "SnapshotSaved",
  "properties": {
    "event_id": {"type": "string"},
    "snapshot_key": {"type": "string"},
    "version": {"type": "integer"},
    "activity_count": {"type": "integer"},
    "weight_count": {"type": "integer"},
    "incoming_activities": {"type": "integer"},
    "incoming_weights": {"type": "integer"},
    "dropped": {"type": "integer"},
    "saved_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "snapshot_key", "version", "activity_count", "weight_count", "saved_at"],
  "additionalProperties": false
}`

const snapshotPrunedSchema = `{
  "type": "object",
  "title": "SnapshotPruned",
  "properties": {
    "event_id": {"type": "string"},
    "snapshot_key": {"type": "string"},
    "version": {"type": "integer"},
    "dropped": {"type": "integer"},
    "pruned_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "snapshot_key", "version", "dropped", "pruned_at"],
  "additionalProperties": false
}`

var schemaCatalog = map[string]string{
	events.TypeSnapshotSaved:  snapshotSavedSchema,
	events.TypeSnapshotPruned: snapshotPrunedSchema,
}
