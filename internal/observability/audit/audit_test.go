package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/evaluator"
	"github.com/assessly/itemdelivery/internal/platform/errors"
	"github.com/assessly/itemdelivery/internal/platform/log"
)

func TestRecorderWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	log.Configure(log.Config{Output: &buf, Level: "info"})

	recorder := NewRecorder()
	recorder.Action("sess-1", domain.Event{
		ID:       "evt-1",
		Kind:     domain.KindAttemptValid,
		Seq:      3,
		Snapshot: evaluator.Snapshot{Duration: 2.5},
	})
	recorder.Denial("sess-1", "attempt", errors.CodeMakeAttempt)
	recorder.Access("sess-1", "result")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("recorder wrote %d lines, want 3: %s", len(lines), buf.String())
	}

	var action map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &action); err != nil {
		t.Fatalf("unmarshal action record: %v", err)
	}
	if action["component"] != "audit" || action["session_id"] != "sess-1" {
		t.Fatalf("action record = %v", action)
	}
	if action["kind"] != "ATTEMPT_VALID" || action["seq"] != float64(3) {
		t.Fatalf("action record = %v", action)
	}

	var denial map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &denial); err != nil {
		t.Fatalf("unmarshal denial record: %v", err)
	}
	if denial["level"] != "warn" || denial["code"] != "MAKE_ATTEMPT" {
		t.Fatalf("denial record = %v", denial)
	}

	var access map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &access); err != nil {
		t.Fatalf("unmarshal access record: %v", err)
	}
	if access["resource"] != "result" {
		t.Fatalf("access record = %v", access)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	recorder.Action("sess-1", domain.Event{})
	recorder.Denial("sess-1", "close", errors.CodeCloseSessionWhenClosed)
	recorder.Access("sess-1", "source")
}
