package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alertLine = `{"timestamp":"2024-05-01T10:00:00.000000+0000","flow_id":1234,` +
	`"src_ip":"192.168.1.10","src_port":4444,"dest_ip":"10.0.0.2","dest_port":80,` +
	`"proto":"TCP","alert":{"action":"allowed","signature":"ET SCAN Nmap Scripting Engine",` +
	`"signature_id":2009358,"severity":2},"payload_printable":"GET / HTTP/1.1"}`

func TestParseEventAlert(t *testing.T) {
	event, err := ParseEvent([]byte(alertLine))
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01T10:00:00.000000+0000", event.Timestamp)
	assert.Equal(t, "192.168.1.10", event.SrcIP)
	assert.Equal(t, "10.0.0.2", event.DestIP)
	assert.Equal(t, 4444, event.SrcPort)
	assert.Equal(t, 80, event.DestPort)
	assert.Equal(t, "TCP", event.Proto)

	require.True(t, event.HasAlert())
	assert.Equal(t, "ET SCAN Nmap Scripting Engine", event.Alert.Signature)
	assert.Equal(t, int64(2009358), event.Alert.SignatureID)
	require.NotNil(t, event.Alert.Severity)
	assert.Equal(t, 2, *event.Alert.Severity)
}

func TestParseEventNoAlert(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing", `{"timestamp":"t","event_type":"flow"}`},
		{"null", `{"timestamp":"t","alert":null}`},
		{"empty object", `{"timestamp":"t","alert":{}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.line))
			require.NoError(t, err)
			assert.False(t, event.HasAlert())
		})
	}
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent([]byte(`not json at all`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestParseEventMistypedFieldTolerated(t *testing.T) {
	event, err := ParseEvent([]byte(`{"src_ip":42,"proto":"UDP","alert":{"signature":"x"}}`))
	require.NoError(t, err)
	assert.Empty(t, event.SrcIP)
	assert.Equal(t, "UDP", event.Proto)
	assert.True(t, event.HasAlert())
}

func TestParseEventMistypedAlertStillCarries(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"mistyped inner field", `{"timestamp":"t","alert":{"signature":123}}`},
		{"non-object alert", `{"timestamp":"t","alert":"scan"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.line))
			require.NoError(t, err)
			// The record is alert-carrying even though the descriptor is
			// unusable; no canonical fields means no dedup, not a drop.
			assert.True(t, event.HasAlert())
			assert.Nil(t, event.Alert)
		})
	}
}

func TestEventMarshalPreservesUnknownFields(t *testing.T) {
	event, err := ParseEvent([]byte(alertLine))
	require.NoError(t, err)

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var round map[string]any
	require.NoError(t, json.Unmarshal(data, &round))
	assert.Equal(t, float64(1234), round["flow_id"])
	assert.Equal(t, "GET / HTTP/1.1", round["payload_printable"])
}

func TestStoredAlertRoundTrip(t *testing.T) {
	event, err := ParseEvent([]byte(alertLine))
	require.NoError(t, err)

	stored := &StoredAlert{
		Event:       event,
		StoredAt:    time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC),
		Fingerprint: "abc123",
	}

	data, err := json.Marshal(stored)
	require.NoError(t, err)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(data, &asMap))
	assert.Equal(t, "abc123", asMap["_fingerprint"])
	assert.Contains(t, asMap, "stored_at")
	assert.Equal(t, float64(1234), asMap["flow_id"])

	var back StoredAlert
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "abc123", back.Fingerprint)
	assert.True(t, stored.StoredAt.Equal(back.StoredAt))
	require.True(t, back.Event.HasAlert())
	assert.Equal(t, "ET SCAN Nmap Scripting Engine", back.Event.Alert.Signature)

	// The bookkeeping keys must not leak back into the event itself.
	eventJSON, err := json.Marshal(back.Event)
	require.NoError(t, err)
	assert.NotContains(t, string(eventJSON), "_fingerprint")
	assert.NotContains(t, string(eventJSON), "stored_at")
}

func TestStoredAlertSeverity(t *testing.T) {
	event, err := ParseEvent([]byte(alertLine))
	require.NoError(t, err)
	assert.Equal(t, "2", (&StoredAlert{Event: event}).Severity())

	noSeverity, err := ParseEvent([]byte(`{"timestamp":"t","alert":{"signature":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, "unknown", (&StoredAlert{Event: noSeverity}).Severity())

	assert.Equal(t, "unknown", (&StoredAlert{}).Severity())
}
