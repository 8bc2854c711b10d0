// Package events defines the Gridworks event model shared by every gwd
// component: the envelope fields all events carry, the message wrapper
// they may arrive in, and the helpers the display layer uses to summarize
// them.
package events

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TypeNamePrefix is the namespace prefix of all Gridworks event TypeNames.
const TypeNamePrefix = "gridworks.event."

// MessageTypeName is the TypeName of the gwproto message wrapper.
const MessageTypeName = "gw"

// Well-known upstream event TypeNames the display layer treats specially.
const (
	TypeShutdown = "gridworks.event.shutdown"
	TypeProblem  = "gridworks.event.problem"
)

// ErrNotAnEvent marks payloads that are valid Gridworks messages but do
// not carry an event.
var ErrNotAnEvent = errors.New("message does not carry an event")

// envelopeFields are the JSON keys every event carries; everything else
// is retained in Other.
var envelopeFields = map[string]struct{}{
	"TypeName":      {},
	"MessageId":     {},
	"TimeCreatedMs": {},
	"TimeNS":        {},
	"Src":           {},
	"Version":       {},
}

// AnyEvent is a Gridworks event of any type. The envelope fields are
// explicit; unrecognized fields are preserved in Other so no payload
// detail is lost on re-serialization.
type AnyEvent struct {
	TypeName      string
	MessageID     string
	TimeCreatedMs int64
	Src           string
	Version       string
	Other         map[string]any
}

// Time returns the event creation time.
func (e *AnyEvent) Time() time.Time {
	return time.UnixMilli(e.TimeCreatedMs).UTC()
}

// DisplayType returns the TypeName with the namespace prefixes stripped,
// the way the tables render it.
func (e *AnyEvent) DisplayType() string {
	return strings.TrimPrefix(strings.TrimPrefix(e.TypeName, TypeNamePrefix), "comm.")
}

// Summary returns the one-line rendering of the event body. Shutdown
// events show the first line of their Reason, problem events their
// Summary with newlines escaped, everything else its other-fields as
// compact JSON.
func (e *AnyEvent) Summary() string {
	switch e.TypeName {
	case TypeShutdown:
		if reason, ok := e.Other["Reason"].(string); ok {
			if idx := strings.IndexByte(reason, '\n'); idx >= 0 {
				reason = strings.TrimRight(reason[:idx], ":")
			}
			return reason
		}
	case TypeProblem:
		if summary, ok := e.Other["Summary"].(string); ok {
			return strings.ReplaceAll(summary, "\n", "\\n")
		}
	}
	if len(e.Other) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Other))
	for k := range e.Other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		val, err := json.Marshal(e.Other[k])
		if err != nil {
			val = []byte(`"?"`)
		}
		fmt.Fprintf(&sb, "%q: %s", k, val)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Validate checks the envelope fields required of every event.
func (e *AnyEvent) Validate() error {
	if e.TypeName == "" {
		return errors.New("event missing TypeName")
	}
	if e.MessageID == "" {
		return fmt.Errorf("event %s missing MessageId", e.TypeName)
	}
	if e.TimeCreatedMs <= 0 {
		return fmt.Errorf("event %s missing creation time", e.TypeName)
	}
	return nil
}

// UnmarshalJSON decodes an event, keeping unrecognized fields in Other.
// TimeNS (nanoseconds) is accepted as a fallback for TimeCreatedMs.
func (e *AnyEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.TypeName, _ = raw["TypeName"].(string)
	e.MessageID, _ = raw["MessageId"].(string)
	e.Src, _ = raw["Src"].(string)
	e.Version, _ = raw["Version"].(string)
	if ms, ok := asInt64(raw["TimeCreatedMs"]); ok {
		e.TimeCreatedMs = ms
	} else if ns, ok := asInt64(raw["TimeNS"]); ok {
		e.TimeCreatedMs = ns / int64(time.Millisecond)
	}
	e.Other = make(map[string]any, len(raw))
	for k, v := range raw {
		if _, envelope := envelopeFields[k]; !envelope {
			e.Other[k] = v
		}
	}
	return nil
}

// MarshalJSON re-merges the envelope fields with Other.
func (e *AnyEvent) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(e.Other)+5)
	for k, v := range e.Other {
		merged[k] = v
	}
	merged["TypeName"] = e.TypeName
	merged["MessageId"] = e.MessageID
	merged["TimeCreatedMs"] = e.TimeCreatedMs
	merged["Src"] = e.Src
	if e.Version != "" {
		merged["Version"] = e.Version
	}
	return json.Marshal(merged)
}

// header is the subset of the gwproto message header gwd needs.
type header struct {
	Src         string `json:"Src"`
	MessageType string `json:"MessageType"`
}

// envelope is the gwproto message wrapper.
type envelope struct {
	Header   header          `json:"Header"`
	Payload  json.RawMessage `json:"Payload"`
	TypeName string          `json:"TypeName"`
}

// Decode parses raw JSON into an AnyEvent. The payload may be a bare
// event or a gwproto message wrapping one. A well-formed message whose
// type is outside the gridworks.event namespace returns ErrNotAnEvent.
func Decode(data []byte) (*AnyEvent, error) {
	var probe struct {
		TypeName string `json:"TypeName"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if probe.TypeName == MessageTypeName {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parse message envelope: %w", err)
		}
		if !strings.HasPrefix(env.Header.MessageType, TypeNamePrefix[:len(TypeNamePrefix)-1]) {
			return nil, ErrNotAnEvent
		}
		return decodeEvent(env.Payload, env.Header.Src)
	}
	return decodeEvent(data, "")
}

func decodeEvent(data []byte, fallbackSrc string) (*AnyEvent, error) {
	var event AnyEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if event.Src == "" {
		event.Src = fallbackSrc
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
