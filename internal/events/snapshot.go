// Package events defines the payloads published when the snapshot changes.
package events

import "time"

// Event types.
const (
	TypeSnapshotSaved  = "snapshot.saved"
	TypeSnapshotPruned = "snapshot.pruned"
)

// SnapshotSaved is emitted after a submit is stored.
type SnapshotSaved struct {
	EventID            string    `json:"event_id"`
	SnapshotKey        string    `json:"snapshot_key"`
	Version            int64     `json:"version"`
	ActivityCount      int       `json:"activity_count"`
	WeightCount        int       `json:"weight_count"`
	IncomingActivities int       `json:"incoming_activities"`
	IncomingWeights    int       `json:"incoming_weights"`
	Dropped            int       `json:"dropped"`
	SavedAt            time.Time `json:"saved_at"`
}

// SnapshotPruned is emitted after the retention sweep removes entries.
type SnapshotPruned struct {
	EventID     string    `json:"event_id"`
	SnapshotKey string    `json:"snapshot_key"`
	Version     int64     `json:"version"`
	Dropped     int       `json:"dropped"`
	PrunedAt    time.Time `json:"pruned_at"`
}
