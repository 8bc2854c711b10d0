package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LifecyclePrefix is the namespace of events gwd generates about its own
// operation. They flow on the same bus as remote events but are rendered
// in the activity panel and never persisted.
const LifecyclePrefix = "gridworks.event.debug_cli."

// Lifecycle event TypeNames.
const (
	TypeSyncStart       = LifecyclePrefix + "sync.start"
	TypeSyncComplete    = LifecyclePrefix + "sync.complete"
	TypeSyncFailed      = LifecyclePrefix + "sync.failed"
	TypeMQTTSubscribed  = LifecyclePrefix + "mqtt.fully.subscribed"
	TypeMQTTParseError  = LifecyclePrefix + "mqtt.parse.error"
	TypeMQTTConnLost    = LifecyclePrefix + "mqtt.connection.lost"
)

// IsLifecycle reports whether the event is internal to gwd.
func (e *AnyEvent) IsLifecycle() bool {
	return strings.HasPrefix(e.TypeName, LifecyclePrefix)
}

// DisplayLifecycleType strips the lifecycle namespace for the activity
// panel.
func (e *AnyEvent) DisplayLifecycleType() string {
	return strings.TrimPrefix(e.TypeName, LifecyclePrefix)
}

// NewLifecycle builds an internal event with a fresh MessageId. The
// extra fields land in Other and show up in the activity panel summary.
func NewLifecycle(typeName, src string, other map[string]any) *AnyEvent {
	if other == nil {
		other = map[string]any{}
	}
	return &AnyEvent{
		TypeName:      typeName,
		MessageID:     uuid.NewString(),
		TimeCreatedMs: time.Now().UnixMilli(),
		Src:           src,
		Other:         other,
	}
}

// NewSyncStart marks the beginning of one day-directory sync.
func NewSyncStart(syncedKey string) *AnyEvent {
	return NewLifecycle(TypeSyncStart, "gwd", map[string]any{"SyncedKey": syncedKey})
}

// NewSyncComplete marks a finished day-directory sync.
func NewSyncComplete(syncedKey string, fetched, skipped int) *AnyEvent {
	return NewLifecycle(TypeSyncComplete, "gwd", map[string]any{
		"SyncedKey": syncedKey,
		"Fetched":   fetched,
		"Skipped":   skipped,
	})
}

// NewSyncFailed marks a day-directory sync that gave up.
func NewSyncFailed(syncedKey string, err error) *AnyEvent {
	return NewLifecycle(TypeSyncFailed, "gwd", map[string]any{
		"SyncedKey": syncedKey,
		"Error":     err.Error(),
	})
}

// SyncedKey returns the SyncedKey field of sync lifecycle events.
func (e *AnyEvent) SyncedKey() string {
	key, _ := e.Other["SyncedKey"].(string)
	return key
}
