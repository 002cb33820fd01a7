package consumer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/runlog/internal/events"
)

const (
	wireHeaderLen = 5
	wireMagicByte = 0
)

var errMissingEventType = errors.New("missing event_type header")

// Message is a snapshot event read back from Kafka. Exactly one of Saved and
// Pruned is set, matching EventType.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	EventID       string
	SnapshotKey   string
	Version       int64
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage

	Saved  *events.SnapshotSaved
	Pruned *events.SnapshotPruned
}

// unframe splits a Schema Registry wire-format value into schema id and body.
func unframe(value []byte) (int, []byte, error) {
	if len(value) < wireHeaderLen {
		return 0, nil, fmt.Errorf("value too short for wire header: %d bytes", len(value))
	}
	if value[0] != wireMagicByte {
		return 0, nil, fmt.Errorf("unexpected magic byte %d", value[0])
	}
	return int(binary.BigEndian.Uint32(value[1:wireHeaderLen])), value[wireHeaderLen:], nil
}

func decodeMessage(msg kafka.Message) (Message, error) {
	schemaID, body, err := unframe(msg.Value)
	if err != nil {
		return Message{}, err
	}
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType, ok := headers["event_type"]
	if !ok {
		return Message{}, errMissingEventType
	}

	out := Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     eventType,
		SnapshotKey:   headers["aggregate_id"],
		SchemaSubject: headers["schema_subject"],
		SchemaID:      schemaID,
		Payload:       json.RawMessage(append([]byte(nil), body...)),
	}

	switch eventType {
	case events.TypeSnapshotSaved:
		var evt events.SnapshotSaved
		if err := json.Unmarshal(body, &evt); err != nil {
			return Message{}, fmt.Errorf("decode %s: %w", eventType, err)
		}
		out.Saved = &evt
		out.EventID, out.Version = evt.EventID, evt.Version
		out.fillKey(evt.SnapshotKey)
	case events.TypeSnapshotPruned:
		var evt events.SnapshotPruned
		if err := json.Unmarshal(body, &evt); err != nil {
			return Message{}, fmt.Errorf("decode %s: %w", eventType, err)
		}
		out.Pruned = &evt
		out.EventID, out.Version = evt.EventID, evt.Version
		out.fillKey(evt.SnapshotKey)
	default:
		return Message{}, fmt.Errorf("unknown event_type %q", eventType)
	}

	if out.EventID == "" {
		out.EventID = headers["event_id"]
	}
	if out.EventID == "" {
		return Message{}, fmt.Errorf("%s without event_id", eventType)
	}
	return out, nil
}

// fillKey prefers the aggregate_id header and falls back to the payload.
func (m *Message) fillKey(key string) {
	if m.SnapshotKey == "" {
		m.SnapshotKey = key
	}
}
