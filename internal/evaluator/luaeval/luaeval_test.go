package luaeval

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/assessly/itemdelivery/internal/evaluator"
)

const numericItem = `
item = {
    responses = {
        R1 = { base_type = "integer" },
    },
    max_attempts = 1,
}

function item.init(vars)
    vars.SCORE = 0
end

function item.validate(identifier, value, vars)
    return value >= 0
end

function item.process(vars, responses)
    if responses.R1 == 42 then
        vars.SCORE = 1
    end
    return true
end
`

func testItem(source string) evaluator.ItemDefinition {
	return evaluator.ItemDefinition{ID: "item-1", Title: "Numeric", Source: source}
}

func TestInitializeState(t *testing.T) {
	eval := New()
	snapshot, autoClosed, err := eval.InitializeState(context.Background(), testItem(numericItem))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if autoClosed {
		t.Fatal("expected item to stay open after init")
	}
	if snapshot.IsClosed() {
		t.Fatal("expected open snapshot")
	}

	var doc struct {
		Vars map[string]any `json:"vars"`
	}
	if err := json.Unmarshal(snapshot.State, &doc); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if score, ok := doc.Vars["SCORE"].(float64); !ok || score != 0 {
		t.Fatalf("expected SCORE=0 after template processing, got %v", doc.Vars["SCORE"])
	}
}

func TestInitializeStateAutoClose(t *testing.T) {
	source := `
item = { responses = {} }
function item.init(vars)
    return true
end
`
	eval := New()
	snapshot, autoClosed, err := eval.InitializeState(context.Background(), testItem(source))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !autoClosed {
		t.Fatal("expected auto-close")
	}
	if !snapshot.IsClosed() {
		t.Fatal("expected closed snapshot")
	}
}

func TestInitializeStateRejectsBrokenScript(t *testing.T) {
	eval := New()
	if _, _, err := eval.InitializeState(context.Background(), testItem("this is not lua")); err == nil {
		t.Fatal("expected script error")
	}
	if _, _, err := eval.InitializeState(context.Background(), testItem("x = 1")); err == nil {
		t.Fatal("expected missing item table error")
	}
}

func TestBindBadResponse(t *testing.T) {
	eval := New()
	snapshot, _, err := eval.InitializeState(context.Background(), testItem(numericItem))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	bound, err := eval.Bind(context.Background(), testItem(numericItem), snapshot, map[string]evaluator.ResponseValue{
		"R1": {Kind: evaluator.ResponseText, Text: "bad-format"},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(bound.BadResponseIdentifiers) != 1 || bound.BadResponseIdentifiers[0] != "R1" {
		t.Fatalf("expected R1 bad, got %v", bound.BadResponseIdentifiers)
	}
	if len(bound.InvalidResponseIdentifiers) != 0 {
		t.Fatalf("expected no invalid identifiers, got %v", bound.InvalidResponseIdentifiers)
	}
}

func TestBindUndeclaredIdentifierIsBad(t *testing.T) {
	eval := New()
	snapshot, _, err := eval.InitializeState(context.Background(), testItem(numericItem))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	bound, err := eval.Bind(context.Background(), testItem(numericItem), snapshot, map[string]evaluator.ResponseValue{
		"NOPE": {Kind: evaluator.ResponseText, Text: "1"},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(bound.BadResponseIdentifiers) != 1 || bound.BadResponseIdentifiers[0] != "NOPE" {
		t.Fatalf("expected NOPE bad, got %v", bound.BadResponseIdentifiers)
	}
}

func TestBindInvalidResponse(t *testing.T) {
	eval := New()
	snapshot, _, err := eval.InitializeState(context.Background(), testItem(numericItem))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	bound, err := eval.Bind(context.Background(), testItem(numericItem), snapshot, map[string]evaluator.ResponseValue{
		"R1": {Kind: evaluator.ResponseText, Text: "-5"},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(bound.BadResponseIdentifiers) != 0 {
		t.Fatalf("expected no bad identifiers, got %v", bound.BadResponseIdentifiers)
	}
	if len(bound.InvalidResponseIdentifiers) != 1 || bound.InvalidResponseIdentifiers[0] != "R1" {
		t.Fatalf("expected R1 invalid, got %v", bound.InvalidResponseIdentifiers)
	}
}

func TestProcessRunsOutcomeProcessingAndEnds(t *testing.T) {
	ctx := context.Background()
	eval := New()
	item := testItem(numericItem)

	snapshot, _, err := eval.InitializeState(ctx, item)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	bound, err := eval.Bind(ctx, item, snapshot, map[string]evaluator.ResponseValue{
		"R1": {Kind: evaluator.ResponseText, Text: "42"},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(bound.BadResponseIdentifiers)+len(bound.InvalidResponseIdentifiers) != 0 {
		t.Fatalf("expected fully valid bind, got bad=%v invalid=%v",
			bound.BadResponseIdentifiers, bound.InvalidResponseIdentifiers)
	}

	processed, err := eval.Process(ctx, item, bound)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !processed.IsClosed() {
		t.Fatal("expected item to end after one attempt")
	}

	result, err := eval.ComputeResult(ctx, item, processed)
	if err != nil {
		t.Fatalf("compute result: %v", err)
	}
	var doc struct {
		SessionStatus string         `json:"session_status"`
		Outcomes      map[string]any `json:"outcomes"`
		Attempts      int            `json:"attempts"`
	}
	if err := json.Unmarshal(result, &doc); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if doc.SessionStatus != "final" {
		t.Fatalf("expected final status, got %s", doc.SessionStatus)
	}
	if score, ok := doc.Outcomes["SCORE"].(float64); !ok || score != 1 {
		t.Fatalf("expected SCORE=1, got %v", doc.Outcomes["SCORE"])
	}
	if doc.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", doc.Attempts)
	}
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	eval := New()
	item := testItem(numericItem)

	snapshot, _, err := eval.InitializeState(ctx, item)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	ended, err := eval.EndSession(ctx, item, snapshot, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if !ended.IsClosed() {
		t.Fatal("expected closed snapshot after end")
	}
	if snapshot.IsClosed() {
		t.Fatal("end must not mutate the input snapshot")
	}
}

func TestBindFileResponse(t *testing.T) {
	source := `
item = {
    responses = {
        ESSAY = { base_type = "file" },
    },
}
`
	ctx := context.Background()
	eval := New()
	item := testItem(source)

	snapshot, _, err := eval.InitializeState(ctx, item)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	bound, err := eval.Bind(ctx, item, snapshot, map[string]evaluator.ResponseValue{
		"ESSAY": {Kind: evaluator.ResponseArtifact, ArtifactRef: "uploads/abc", ContentType: "text/plain"},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(bound.BadResponseIdentifiers) != 0 {
		t.Fatalf("expected artifact to bind, got bad=%v", bound.BadResponseIdentifiers)
	}

	// Text submitted against a file declaration cannot bind.
	bound, err = eval.Bind(ctx, item, snapshot, map[string]evaluator.ResponseValue{
		"ESSAY": {Kind: evaluator.ResponseText, Text: "inline"},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(bound.BadResponseIdentifiers) != 1 {
		t.Fatalf("expected text-for-file to be bad, got %v", bound.BadResponseIdentifiers)
	}
}

func TestDeclarations(t *testing.T) {
	decls, err := Declarations(testItem(numericItem))
	if err != nil {
		t.Fatalf("declarations: %v", err)
	}
	if decls["R1"] != "integer" {
		t.Fatalf("expected R1 integer, got %v", decls)
	}
}

func TestBindValueBaseTypes(t *testing.T) {
	tests := []struct {
		name     string
		baseType string
		raw      evaluator.ResponseValue
		want     any
		ok       bool
	}{
		{"integer ok", "integer", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: " 7 "}, 7, true},
		{"integer bad", "integer", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "7.5"}, nil, false},
		{"float ok", "float", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "2.5"}, 2.5, true},
		{"boolean ok", "boolean", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "true"}, true, true},
		{"boolean bad", "boolean", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "yep"}, nil, false},
		{"identifier ok", "identifier", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "choiceA"}, "choiceA", true},
		{"identifier with space", "identifier", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "choice A"}, nil, false},
		{"string passthrough", "string", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "  raw  "}, "  raw  ", true},
		{"unknown base type", "blob", evaluator.ResponseValue{Kind: evaluator.ResponseText, Text: "x"}, nil, false},
		{"artifact for text decl", "string", evaluator.ResponseValue{Kind: evaluator.ResponseArtifact, ArtifactRef: "a"}, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := bindValue(responseDecl{baseType: tc.baseType}, tc.raw)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  any
	}{
		{"integral", 3, 3},
		{"negative integral", -12, -12},
		{"fractional", 3.5, 3.5},
		{"huge integral stays float", 1e300, 1e300},
		{"huge negative stays float", -1e300, -1e300},
		{"max int boundary stays float", float64(math.MaxInt64), float64(math.MaxInt64)},
		{"min int converts", float64(math.MinInt64), math.MinInt64},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeNumber(tc.value)
			if got != tc.want {
				t.Fatalf("normalizeNumber(%v) = %v (%T), want %v (%T)", tc.value, got, got, tc.want, tc.want)
			}
		})
	}
}
