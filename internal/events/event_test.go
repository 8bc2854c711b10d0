package events

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

const bareEvent = `{
  "TypeName": "gridworks.event.comm.peer.active",
  "MessageId": "6a7b1c2d-0000-4000-8000-000000000001",
  "TimeCreatedMs": 1678406400000,
  "Src": "hw1.isone.me.freedom.apple.scada",
  "PeerName": "hw1.isone.me.freedom.apple"
}`

const wrappedEvent = `{
  "TypeName": "gw",
  "Header": {
    "Src": "hw1.isone.me.freedom.apple.scada",
    "MessageType": "gridworks.event.problem"
  },
  "Payload": {
    "TypeName": "gridworks.event.problem",
    "MessageId": "6a7b1c2d-0000-4000-8000-000000000002",
    "TimeCreatedMs": 1678406401000,
    "ProblemType": "warning",
    "Summary": "relay stuck\nsecond line"
  }
}`

const nonEventMessage = `{
  "TypeName": "gw",
  "Header": {
    "Src": "hw1.isone.me.freedom.apple.scada",
    "MessageType": "gt.sh.status"
  },
  "Payload": {"TypeName": "gt.sh.status"}
}`

func TestDecode_BareEvent(t *testing.T) {
	event, err := Decode([]byte(bareEvent))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.TypeName != "gridworks.event.comm.peer.active" {
		t.Errorf("TypeName = %q", event.TypeName)
	}
	if event.Src != "hw1.isone.me.freedom.apple.scada" {
		t.Errorf("Src = %q", event.Src)
	}
	if got := event.Other["PeerName"]; got != "hw1.isone.me.freedom.apple" {
		t.Errorf("PeerName in Other = %v", got)
	}
	if _, envelope := event.Other["MessageId"]; envelope {
		t.Error("envelope field leaked into Other")
	}
	if got := event.DisplayType(); got != "peer.active" {
		t.Errorf("DisplayType = %q", got)
	}
}

func TestDecode_WrappedEvent(t *testing.T) {
	event, err := Decode([]byte(wrappedEvent))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.TypeName != TypeProblem {
		t.Errorf("TypeName = %q", event.TypeName)
	}
	// Src falls back to the envelope header.
	if event.Src != "hw1.isone.me.freedom.apple.scada" {
		t.Errorf("Src = %q", event.Src)
	}
	if got := event.Summary(); got != `relay stuck\nsecond line` {
		t.Errorf("Summary = %q", got)
	}
}

func TestDecode_NonEventMessage(t *testing.T) {
	_, err := Decode([]byte(nonEventMessage))
	if !errors.Is(err, ErrNotAnEvent) {
		t.Fatalf("err = %v, want ErrNotAnEvent", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"missing message id", `{"TypeName": "gridworks.event.startup", "TimeCreatedMs": 1}`},
		{"missing type name", `{"MessageId": "x", "TimeCreatedMs": 1}`},
		{"missing time", `{"TypeName": "gridworks.event.startup", "MessageId": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecode_TimeNSFallback(t *testing.T) {
	data := `{
  "TypeName": "gridworks.event.startup",
  "MessageId": "abc",
  "TimeNS": 1678406400123000000,
  "Src": "s"
}`
	event, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.TimeCreatedMs != 1678406400123 {
		t.Errorf("TimeCreatedMs = %d", event.TimeCreatedMs)
	}
}

func TestSummary_Shutdown(t *testing.T) {
	event := &AnyEvent{
		TypeName: TypeShutdown,
		Other:    map[string]any{"Reason": "watchdog expired:\ndetails follow"},
	}
	if got := event.Summary(); got != "watchdog expired" {
		t.Errorf("Summary = %q", got)
	}
}

func TestSummary_OtherFieldsAreDeterministic(t *testing.T) {
	event := &AnyEvent{
		TypeName: "gridworks.event.startup",
		Other:    map[string]any{"B": 2.0, "A": "one"},
	}
	want := `{"A": "one", "B": 2}`
	for i := 0; i < 5; i++ {
		if got := event.Summary(); got != want {
			t.Fatalf("Summary = %q, want %q", got, want)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	original, err := Decode([]byte(bareEvent))
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode after Marshal: %v", err)
	}
	if decoded.MessageID != original.MessageID || decoded.TimeCreatedMs != original.TimeCreatedMs {
		t.Errorf("round trip changed envelope: %+v vs %+v", decoded, original)
	}
	if decoded.Other["PeerName"] != original.Other["PeerName"] {
		t.Errorf("round trip dropped other fields")
	}
}

func TestLifecycleEvents(t *testing.T) {
	event := NewSyncComplete("gwdev/hw1/eventstore/20230310", 12, 88)
	if !event.IsLifecycle() {
		t.Error("sync complete should be a lifecycle event")
	}
	if event.MessageID == "" || event.TimeCreatedMs == 0 {
		t.Error("lifecycle envelope not populated")
	}
	if got := event.SyncedKey(); got != "gwdev/hw1/eventstore/20230310" {
		t.Errorf("SyncedKey = %q", got)
	}
	if got := event.DisplayLifecycleType(); got != "sync.complete" {
		t.Errorf("DisplayLifecycleType = %q", got)
	}

	remote, err := Decode([]byte(bareEvent))
	if err != nil {
		t.Fatal(err)
	}
	if remote.IsLifecycle() {
		t.Error("remote event misclassified as lifecycle")
	}
}

func TestDecodeSnapshot(t *testing.T) {
	snapMessage := `{
  "TypeName": "gw",
  "Header": {"Src": "hw1.isone.me.freedom.apple.scada", "MessageType": "snapshot.spaceheat.002"},
  "Payload": {
    "TypeName": "snapshot.spaceheat.002",
    "FromGNodeAlias": "hw1.isone.me.freedom.apple.scada",
    "SnapshotTimeUnixMs": 1678406400000,
    "LatestReadingList": [
      {"ChannelName": "hp-odu-pwr", "Value": 1420, "ScadaReadTimeUnixMs": 1678406399000}
    ]
  }
}`
	snap, err := DecodeSnapshot([]byte(snapMessage))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if snap.FromGNodeAlias != "hw1.isone.me.freedom.apple.scada" {
		t.Errorf("FromGNodeAlias = %q", snap.FromGNodeAlias)
	}
	if len(snap.LatestReadingList) != 1 || snap.LatestReadingList[0].ChannelName != "hp-odu-pwr" {
		t.Errorf("readings = %+v", snap.LatestReadingList)
	}
	if !IsSnapshotMessage([]byte(snapMessage)) {
		t.Error("IsSnapshotMessage = false")
	}
	if IsSnapshotMessage([]byte(bareEvent)) {
		t.Error("bare event misidentified as snapshot")
	}

	older := &Snapshot{SnapshotTimeUnixMs: 1}
	if !snap.NewerThan(older) {
		t.Error("NewerThan(older) = false")
	}
	if older.NewerThan(snap) {
		t.Error("older.NewerThan(newer) = true")
	}
	if !snap.NewerThan(nil) {
		t.Error("NewerThan(nil) = false")
	}

	if _, err := DecodeSnapshot([]byte(nonEventMessage)); !errors.Is(err, ErrNotAnEvent) {
		t.Errorf("non-snapshot message: err = %v", err)
	}
}

func TestSummaryEmptyOther(t *testing.T) {
	event := &AnyEvent{TypeName: "gridworks.event.startup"}
	if got := event.Summary(); got != "" {
		t.Errorf("Summary = %q, want empty", got)
	}
	if !strings.HasPrefix(TypeSyncStart, LifecyclePrefix) {
		t.Error("lifecycle constants drifted")
	}
}
