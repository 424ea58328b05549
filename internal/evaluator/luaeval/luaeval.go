// Package luaeval implements the evaluator contract with Lua-scripted items.
//
// An item definition is a Lua script that declares a global `item` table:
//
//	item = {
//	    responses = {
//	        R1 = { base_type = "integer" },
//	    },
//	    max_attempts = 1,
//	}
//
//	function item.init(vars)
//	    vars.SCORE = 0
//	end
//
//	function item.validate(identifier, value, vars)
//	    return value >= 0
//	end
//
//	function item.process(vars, responses)
//	    if responses.R1 == 42 then vars.SCORE = 1 end
//	    return true -- item ends
//	end
//
// init runs during template processing and may return true to close the item
// immediately. validate is optional and reports interaction-level constraint
// failures. process commits responses and runs outcome processing; returning
// true ends the item. When max_attempts is positive the item also ends once
// that many attempts have been processed.
package luaeval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	lua "github.com/Shopify/go-lua"

	"github.com/assessly/itemdelivery/internal/evaluator"
)

const (
	varsGlobal      = "__vars"
	responsesGlobal = "__responses"
)

// Evaluator runs Lua item scripts. It is stateless; all session state lives
// in the snapshot passed to each call.
type Evaluator struct{}

// New creates a Lua-backed item evaluator.
func New() *Evaluator { return &Evaluator{} }

var _ evaluator.Evaluator = (*Evaluator)(nil)

// stateDoc is the serialized evaluator state carried inside a snapshot.
type stateDoc struct {
	Vars      map[string]any `json:"vars"`
	Responses map[string]any `json:"responses,omitempty"`
	Pending   map[string]any `json:"pending,omitempty"`
	Attempts  int            `json:"attempts"`
	EndedAt   string         `json:"ended_at,omitempty"`
}

func (d *stateDoc) ensure() {
	if d.Vars == nil {
		d.Vars = map[string]any{}
	}
	if d.Responses == nil {
		d.Responses = map[string]any{}
	}
}

func decodeState(snapshot evaluator.Snapshot) (stateDoc, error) {
	var doc stateDoc
	if len(snapshot.State) > 0 {
		if err := json.Unmarshal(snapshot.State, &doc); err != nil {
			return stateDoc{}, fmt.Errorf("decode evaluator state: %w", err)
		}
	}
	doc.ensure()
	return doc, nil
}

func encodeState(snapshot evaluator.Snapshot, doc stateDoc) (evaluator.Snapshot, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return evaluator.Snapshot{}, fmt.Errorf("encode evaluator state: %w", err)
	}
	out := snapshot.Clone()
	out.State = raw
	return out, nil
}

// responseDecl is one expected response shape declared by the item script.
type responseDecl struct {
	baseType string
}

// program is a loaded item script with its declarations extracted.
type program struct {
	l           *lua.State
	decls       map[string]responseDecl
	maxAttempts int
	hasValidate bool
}

func load(item evaluator.ItemDefinition) (*program, error) {
	if strings.TrimSpace(item.Source) == "" {
		return nil, fmt.Errorf("item %s: source is required", item.ID)
	}

	l := lua.NewState()
	lua.OpenLibraries(l)
	if err := lua.DoString(l, item.Source); err != nil {
		return nil, fmt.Errorf("item %s: run script: %w", item.ID, err)
	}

	l.Global("item")
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("item %s: script must define an item table", item.ID)
	}
	itemIdx := l.AbsIndex(-1)

	p := &program{l: l, decls: map[string]responseDecl{}}

	l.Field(itemIdx, "responses")
	if l.TypeOf(-1) == lua.TypeTable {
		declsIdx := l.AbsIndex(-1)
		l.PushNil()
		for l.Next(declsIdx) {
			if l.TypeOf(-2) == lua.TypeString && l.TypeOf(-1) == lua.TypeTable {
				identifier, _ := l.ToString(-2)
				l.Field(-1, "base_type")
				baseType, _ := l.ToString(-1)
				l.Pop(1)
				if baseType == "" {
					baseType = "string"
				}
				p.decls[identifier] = responseDecl{baseType: baseType}
			}
			l.Pop(1)
		}
	}
	l.Pop(1)

	l.Field(itemIdx, "max_attempts")
	if n, ok := l.ToNumber(-1); ok {
		p.maxAttempts = int(n)
	}
	l.Pop(1)

	l.Field(itemIdx, "validate")
	p.hasValidate = l.TypeOf(-1) == lua.TypeFunction
	l.Pop(1)

	l.Pop(1) // item table
	return p, nil
}

// Declarations returns the declared response identifiers and base types.
// Used by the item-checking tool.
func Declarations(item evaluator.ItemDefinition) (map[string]string, error) {
	p, err := load(item)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(p.decls))
	for identifier, decl := range p.decls {
		out[identifier] = decl.baseType
	}
	return out, nil
}

// callItemFunc invokes item.<name>(args...) and leaves resultCount values on
// the stack. Returns false when the function is not defined.
func (p *program) callItemFunc(name string, resultCount int, pushArgs func()) (bool, error) {
	l := p.l
	l.Global("item")
	l.Field(-1, name)
	l.Remove(-2)
	if l.TypeOf(-1) != lua.TypeFunction {
		l.Pop(1)
		return false, nil
	}
	argTop := l.Top()
	if pushArgs != nil {
		pushArgs()
	}
	argCount := l.Top() - argTop
	if err := l.ProtectedCall(argCount, resultCount, 0); err != nil {
		return false, fmt.Errorf("item.%s: %w", name, err)
	}
	return true, nil
}

// InitializeState runs template processing and returns the initial snapshot.
func (e *Evaluator) InitializeState(ctx context.Context, item evaluator.ItemDefinition) (evaluator.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return evaluator.Snapshot{}, false, err
	}
	p, err := load(item)
	if err != nil {
		return evaluator.Snapshot{}, false, err
	}
	l := p.l

	pushGoValue(l, map[string]any{})
	l.SetGlobal(varsGlobal)

	autoClosed := false
	called, err := p.callItemFunc("init", 1, func() {
		l.Global(varsGlobal)
	})
	if err != nil {
		return evaluator.Snapshot{}, false, err
	}
	if called {
		if l.TypeOf(-1) == lua.TypeBoolean {
			autoClosed = l.ToBoolean(-1)
		}
		l.Pop(1)
	}

	l.Global(varsGlobal)
	vars := tableToMap(l, -1)
	l.Pop(1)

	doc := stateDoc{Vars: vars}
	doc.ensure()
	snapshot, err := encodeState(evaluator.Snapshot{Closed: autoClosed}, doc)
	if err != nil {
		return evaluator.Snapshot{}, false, err
	}
	return snapshot, autoClosed, nil
}

// Bind binds raw input against the declared response shapes. Unbindable
// identifiers are reported as bad; bound values failing item.validate are
// reported as invalid. Outcome processing never runs here.
func (e *Evaluator) Bind(ctx context.Context, item evaluator.ItemDefinition, snapshot evaluator.Snapshot, responses map[string]evaluator.ResponseValue) (evaluator.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return evaluator.Snapshot{}, err
	}
	p, err := load(item)
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	doc, err := decodeState(snapshot)
	if err != nil {
		return evaluator.Snapshot{}, err
	}

	identifiers := make([]string, 0, len(responses))
	for identifier := range responses {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)

	bound := map[string]any{}
	var bad []string
	for _, identifier := range identifiers {
		decl, declared := p.decls[identifier]
		if !declared {
			bad = append(bad, identifier)
			continue
		}
		value, ok := bindValue(decl, responses[identifier])
		if !ok {
			bad = append(bad, identifier)
			continue
		}
		bound[identifier] = value
	}

	var invalid []string
	if len(bad) == 0 && p.hasValidate {
		l := p.l
		pushGoValue(l, doc.Vars)
		l.SetGlobal(varsGlobal)
		for _, identifier := range identifiers {
			called, err := p.callItemFunc("validate", 1, func() {
				l.PushString(identifier)
				pushGoValue(l, bound[identifier])
				l.Global(varsGlobal)
			})
			if err != nil {
				return evaluator.Snapshot{}, err
			}
			if called {
				valid := l.ToBoolean(-1)
				l.Pop(1)
				if !valid {
					invalid = append(invalid, identifier)
				}
			}
		}
	}

	if len(bad) == 0 {
		doc.Pending = bound
	} else {
		doc.Pending = nil
	}

	out, err := encodeState(snapshot, doc)
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	out.BadResponseIdentifiers = bad
	out.InvalidResponseIdentifiers = invalid
	return out, nil
}

// Process commits the pending responses and runs outcome processing.
func (e *Evaluator) Process(ctx context.Context, item evaluator.ItemDefinition, snapshot evaluator.Snapshot) (evaluator.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return evaluator.Snapshot{}, err
	}
	p, err := load(item)
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	doc, err := decodeState(snapshot)
	if err != nil {
		return evaluator.Snapshot{}, err
	}

	for identifier, value := range doc.Pending {
		doc.Responses[identifier] = value
	}
	doc.Pending = nil
	doc.Attempts++

	l := p.l
	pushGoValue(l, doc.Vars)
	l.SetGlobal(varsGlobal)
	pushGoValue(l, doc.Responses)
	l.SetGlobal(responsesGlobal)

	ended := false
	called, err := p.callItemFunc("process", 1, func() {
		l.Global(varsGlobal)
		l.Global(responsesGlobal)
	})
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	if called {
		if l.TypeOf(-1) == lua.TypeBoolean {
			ended = l.ToBoolean(-1)
		}
		l.Pop(1)
		l.Global(varsGlobal)
		doc.Vars = tableToMap(l, -1)
		l.Pop(1)
	}

	if p.maxAttempts > 0 && doc.Attempts >= p.maxAttempts {
		ended = true
	}

	out, err := encodeState(snapshot, doc)
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	out.Closed = snapshot.Closed || ended
	out.BadResponseIdentifiers = nil
	out.InvalidResponseIdentifiers = nil
	return out, nil
}

// EndSession force-ends the item session at the given timestamp.
func (e *Evaluator) EndSession(ctx context.Context, item evaluator.ItemDefinition, snapshot evaluator.Snapshot, at time.Time) (evaluator.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return evaluator.Snapshot{}, err
	}
	doc, err := decodeState(snapshot)
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	doc.Pending = nil
	doc.EndedAt = at.UTC().Format(time.RFC3339Nano)

	out, err := encodeState(snapshot, doc)
	if err != nil {
		return evaluator.Snapshot{}, err
	}
	out.Closed = true
	return out, nil
}

// ComputeResult derives the result document from a snapshot.
func (e *Evaluator) ComputeResult(ctx context.Context, item evaluator.ItemDefinition, snapshot evaluator.Snapshot) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := decodeState(snapshot)
	if err != nil {
		return nil, err
	}

	status := "interacting"
	if snapshot.Closed {
		status = "final"
	}
	result := map[string]any{
		"item_id":        item.ID,
		"session_status": status,
		"duration":       snapshot.Duration,
		"outcomes":       doc.Vars,
		"responses":      doc.Responses,
		"attempts":       doc.Attempts,
	}
	if doc.EndedAt != "" {
		result["ended_at"] = doc.EndedAt
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return raw, nil
}

// bindValue converts a raw response into its declared base type.
func bindValue(decl responseDecl, raw evaluator.ResponseValue) (any, bool) {
	if decl.baseType == "file" {
		if raw.Kind != evaluator.ResponseArtifact || strings.TrimSpace(raw.ArtifactRef) == "" {
			return nil, false
		}
		return map[string]any{
			"artifact":     raw.ArtifactRef,
			"content_type": raw.ContentType,
		}, true
	}
	if raw.Kind != evaluator.ResponseText {
		return nil, false
	}

	text := strings.TrimSpace(raw.Text)
	switch decl.baseType {
	case "string":
		return raw.Text, true
	case "identifier":
		if text == "" || strings.ContainsAny(text, " \t\n") {
			return nil, false
		}
		return text, true
	case "integer":
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, false
		}
		return n, true
	case "float":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case "boolean":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, false
		}
		return b, true
	default:
		return nil, false
	}
}

// pushGoValue pushes a Go value onto the Lua stack.
func pushGoValue(l *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	case string:
		l.PushString(v)
	case []any:
		l.NewTable()
		for i, element := range v {
			pushGoValue(l, element)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.NewTable()
		for key, element := range v {
			pushGoValue(l, element)
			l.SetField(-2, key)
		}
	default:
		l.PushNil()
	}
}

func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		return nil
	}
}

func tableToMap(l *lua.State, index int) map[string]any {
	output := map[string]any{}
	if l.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			output[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return output
}

func tableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, luaToGo(l, -1))
			l.Pop(1)
		}
		return result
	}

	return tableToMap(l, index)
}

// normalizeNumber maps integral Lua numbers back to Go integers. Values
// outside the exactly convertible int range stay float64; float64(MaxInt64)
// rounds up to 2^63, so the upper bound is exclusive.
func normalizeNumber(value float64) any {
	if math.Mod(value, 1) != 0 {
		return value
	}
	if value < math.MinInt64 || value >= math.MaxInt64 {
		return value
	}
	return int(value)
}
