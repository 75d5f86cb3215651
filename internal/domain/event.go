package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// AlertInfo is the nested alert descriptor the detection engine attaches to
// an event. Only events carrying one are worth keeping in history. Severity
// is a pointer so an absent field is distinguishable from severity 0.
type AlertInfo struct {
	Signature   string `json:"signature"`
	SignatureID int64  `json:"signature_id"`
	Severity    *int   `json:"severity"`
	Category    string `json:"category,omitempty"`
}

// Event is one parsed line from the eve.json event log. The typed fields
// cover what the pipeline inspects; everything else the engine wrote stays in
// the raw field map so persisting an event never loses data. Immutable once
// parsed.
type Event struct {
	Timestamp string
	SrcIP     string
	DestIP    string
	SrcPort   int
	DestPort  int
	Proto     string
	Alert     *AlertInfo

	// alertMalformed marks a record whose alert value was present and
	// non-empty but did not decode as an alert descriptor. Such records are
	// still alert-carrying; they just have no canonical fields to dedup on.
	alertMalformed bool

	raw map[string]json.RawMessage
}

var jsonNull = []byte("null")

// ParseEvent decodes a single event log line. Lines that are not a JSON
// object fail; individual fields that do not match the expected shape are
// left zero rather than failing the whole line.
func ParseEvent(line []byte) (*Event, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, err
	}

	e := &Event{raw: raw}
	decodeField(raw, "timestamp", &e.Timestamp)
	decodeField(raw, "src_ip", &e.SrcIP)
	decodeField(raw, "dest_ip", &e.DestIP)
	decodeField(raw, "src_port", &e.SrcPort)
	decodeField(raw, "dest_port", &e.DestPort)
	decodeField(raw, "proto", &e.Proto)

	if msg, ok := raw["alert"]; ok && !bytes.Equal(msg, jsonNull) {
		var fields map[string]json.RawMessage
		switch err := json.Unmarshal(msg, &fields); {
		case err != nil:
			// Not an object at all. The engine still flagged the record.
			e.alertMalformed = true
		case len(fields) == 0:
			// {} carries nothing.
		default:
			var info AlertInfo
			if err := json.Unmarshal(msg, &info); err == nil {
				e.Alert = &info
			} else {
				e.alertMalformed = true
			}
		}
	}

	return e, nil
}

func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T) {
	msg, ok := raw[key]
	if !ok {
		return
	}
	// Best effort: a mistyped field stays zero, the event is still usable.
	_ = json.Unmarshal(msg, dst)
}

// HasAlert reports whether the event carries a non-empty alert value,
// decodable or not. A mistyped descriptor still counts: dropping the record
// would hide exactly the lines worth looking at.
func (e *Event) HasAlert() bool {
	return e != nil && (e.Alert != nil || e.alertMalformed)
}

// MarshalJSON echoes the event exactly as it arrived, unrecognized top-level
// fields included.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.raw)
}

// UnmarshalJSON rebuilds an event from persisted history.
func (e *Event) UnmarshalJSON(data []byte) error {
	parsed, err := ParseEvent(data)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

// StoredAlert is an alerting event as kept in history: the event plus the
// ingestion timestamp and the dedup fingerprint. Never mutated after storage.
type StoredAlert struct {
	Event       *Event
	StoredAt    time.Time
	Fingerprint string
}

const (
	storedAtKey    = "stored_at"
	fingerprintKey = "_fingerprint"
)

func (s *StoredAlert) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Event.raw)+2)
	for k, v := range s.Event.raw {
		out[k] = v
	}
	storedAt, err := json.Marshal(s.StoredAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	fp, err := json.Marshal(s.Fingerprint)
	if err != nil {
		return nil, err
	}
	out[storedAtKey] = storedAt
	out[fingerprintKey] = fp
	return json.Marshal(out)
}

func (s *StoredAlert) UnmarshalJSON(data []byte) error {
	event, err := ParseEvent(data)
	if err != nil {
		return err
	}

	var storedAt string
	decodeField(event.raw, storedAtKey, &storedAt)
	decodeField(event.raw, fingerprintKey, &s.Fingerprint)
	delete(event.raw, storedAtKey)
	delete(event.raw, fingerprintKey)

	if t, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
		s.StoredAt = t
	}
	s.Event = event
	return nil
}

// Severity returns the alert severity as a label for aggregation, "unknown"
// when the alert is absent, malformed, or missing the severity field.
func (s *StoredAlert) Severity() string {
	if s.Event == nil || s.Event.Alert == nil || s.Event.Alert.Severity == nil {
		return "unknown"
	}
	return strconv.Itoa(*s.Event.Alert.Severity)
}
