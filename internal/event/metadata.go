package event

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/contentgraph/internal/ir"
)

// Metadata travels with every persisted event.
//
// CommandType and CommandPayload are only set on the first event of a
// rebasable command's commit. Rebase and partial publish rebuild the
// workspace's commands from them.
type Metadata struct {
	InitiatingUserID ir.UserID      `json:"initiatingUserId"`
	CommandType      string         `json:"commandType,omitempty"`
	CommandPayload   map[string]any `json:"commandPayload,omitempty"`
}

// HasCommand reports whether the event records the command that caused it.
func (m Metadata) HasCommand() bool {
	return m.CommandType != ""
}

// EncodeMetadata serializes metadata for the event store.
func EncodeMetadata(m Metadata) (json.RawMessage, error) {
	if m.InitiatingUserID == "" {
		m.InitiatingUserID = ir.SystemUserID
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata parses persisted metadata. Empty input yields zero metadata.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// Envelope is a decoded event together with its position in the log.
type Envelope struct {
	SequenceNumber int64
	Stream         string
	Version        int64
	ID             string
	Event          Event
	Metadata       Metadata
}
