package events

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// snapshotTypeFragment identifies snapshot messages by their
// Header.MessageType.
const snapshotTypeFragment = "snapshot.spaceheat"

// Reading is one channel value inside a snapshot.
type Reading struct {
	ChannelName         string `json:"ChannelName"`
	Value               int64  `json:"Value"`
	ScadaReadTimeUnixMs int64  `json:"ScadaReadTimeUnixMs"`
}

// Snapshot is the latest-telemetry document a scada publishes. gwd keeps
// at most one per source, replaced only by a strictly newer report.
type Snapshot struct {
	FromGNodeAlias     string    `json:"FromGNodeAlias"`
	SnapshotTimeUnixMs int64     `json:"SnapshotTimeUnixMs"`
	LatestReadingList  []Reading `json:"LatestReadingList"`
	TypeName           string    `json:"TypeName"`
}

// NewerThan reports whether s should replace prev. A nil prev is always
// replaced.
func (s *Snapshot) NewerThan(prev *Snapshot) bool {
	return prev == nil || s.SnapshotTimeUnixMs > prev.SnapshotTimeUnixMs
}

// DecodeSnapshot parses a snapshot, unwrapping the gwproto message
// envelope when present. Payloads that are not snapshots return
// ErrNotAnEvent.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var probe struct {
		TypeName string `json:"TypeName"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	body := data
	if probe.TypeName == MessageTypeName {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parse message envelope: %w", err)
		}
		if !strings.Contains(env.Header.MessageType, snapshotTypeFragment) {
			return nil, ErrNotAnEvent
		}
		body = env.Payload
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if !strings.Contains(snap.TypeName, snapshotTypeFragment) {
		return nil, ErrNotAnEvent
	}
	if snap.FromGNodeAlias == "" {
		return nil, fmt.Errorf("snapshot missing FromGNodeAlias")
	}
	return &snap, nil
}

// IsSnapshotMessage reports whether raw JSON looks like a snapshot
// message without fully decoding it.
func IsSnapshotMessage(data []byte) bool {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	if env.TypeName == MessageTypeName {
		return strings.Contains(env.Header.MessageType, snapshotTypeFragment)
	}
	var probe struct {
		TypeName string `json:"TypeName"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return strings.Contains(probe.TypeName, snapshotTypeFragment)
}
