package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/session"
	"gopkg.in/yaml.v3"
)

// Script is a YAML list of edit operations applied to one workflow.
//
//	workflow: 42           # omit to create a new workflow
//	name: Support bot      # name of a new workflow
//	ops:
//	  - add: {ref: llm, type: LLM_NODE, position: {x: 200, y: 80}}
//	  - connect: {source: 1, target: llm}
//	  - config: {node: llm, set: {provider: anthropic}}
//
// Nodes are referenced by durable id or by the ref given to an earlier add.
type Script struct {
	Workflow    int64  `yaml:"workflow,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Ops         []Op   `yaml:"ops"`
}

// Op is one operation. Exactly one field is set.
type Op struct {
	Add        *AddOp        `yaml:"add,omitempty"`
	Config     *ConfigOp     `yaml:"config,omitempty"`
	Field      *FieldOp      `yaml:"field,omitempty"`
	Fields     *FieldsOp     `yaml:"fields_to_add,omitempty"`
	Label      *LabelOp      `yaml:"label,omitempty"`
	Move       *MoveOp       `yaml:"move,omitempty"`
	Delete     *DeleteOp     `yaml:"delete,omitempty"`
	Connect    *ConnectOp    `yaml:"connect,omitempty"`
	Disconnect *DisconnectOp `yaml:"disconnect,omitempty"`
}

type AddOp struct {
	Ref      string          `yaml:"ref,omitempty"`
	Type     string          `yaml:"type"`
	Position domain.Position `yaml:"position"`
	Label    string          `yaml:"label,omitempty"`
	Config   map[string]any  `yaml:"config,omitempty"`
}

type ConfigOp struct {
	Node string         `yaml:"node"`
	Set  map[string]any `yaml:"set"`
}

// FieldOp sets a JSON-typed field from its text.
type FieldOp struct {
	Node  string `yaml:"node"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type FieldsOp struct {
	Node string      `yaml:"node"`
	Rows [][2]string `yaml:"rows"`
}

type LabelOp struct {
	Node string `yaml:"node"`
	Text string `yaml:"text"`
}

type MoveOp struct {
	Node     string          `yaml:"node"`
	Position domain.Position `yaml:"position"`
}

type DeleteOp struct {
	Node string `yaml:"node"`
}

type ConnectOp struct {
	Ref          string  `yaml:"ref,omitempty"`
	Source       string  `yaml:"source"`
	Target       string  `yaml:"target"`
	SourceHandle *string `yaml:"source_handle,omitempty"`
	TargetHandle *string `yaml:"target_handle,omitempty"`
}

type DisconnectOp struct {
	Edge string `yaml:"edge"`
}

// ScriptError reports the operation that failed.
type ScriptError struct {
	Index int // 1-based
	Kind  string
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("op %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// ParseScript decodes a script. Unknown keys are rejected.
func ParseScript(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Script
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	for i, op := range sc.Ops {
		if n := op.count(); n != 1 {
			return nil, fmt.Errorf("parse script: op %d must set exactly one operation, got %d", i+1, n)
		}
	}
	return &sc, nil
}

func (op Op) count() int {
	n := 0
	for _, set := range []bool{
		op.Add != nil, op.Config != nil, op.Field != nil, op.Fields != nil, op.Label != nil,
		op.Move != nil, op.Delete != nil, op.Connect != nil, op.Disconnect != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Apply runs the operations in order on the session and returns the ids bound to refs.
// It stops at the first failing operation; earlier operations stay applied.
func (sc *Script) Apply(ctx context.Context, s *session.Session) (map[string]domain.NodeID, error) {
	refs := make(map[string]domain.NodeID)
	resolve := func(ref string) (domain.NodeID, error) {
		if id, ok := refs[ref]; ok {
			return id, nil
		}
		id, err := domain.ParseNodeID(strings.TrimSpace(ref))
		if err != nil {
			return domain.NodeID{}, fmt.Errorf("unknown reference %q", ref)
		}
		return id, nil
	}
	bind := func(ref string, id domain.NodeID) error {
		if ref == "" {
			return nil
		}
		if _, taken := refs[ref]; taken {
			return fmt.Errorf("reference %q already bound", ref)
		}
		refs[ref] = id
		return nil
	}

	for i, op := range sc.Ops {
		if err := ctx.Err(); err != nil {
			return refs, err
		}
		kind, err := sc.applyOne(s, op, resolve, bind)
		if err != nil {
			return refs, &ScriptError{Index: i + 1, Kind: kind, Err: err}
		}
	}
	return refs, nil
}

func (sc *Script) applyOne(s *session.Session, op Op, resolve func(string) (domain.NodeID, error), bind func(string, domain.NodeID) error) (string, error) {
	switch {
	case op.Add != nil:
		id, err := s.AddNode(op.Add.Type, op.Add.Position)
		if err != nil {
			return "add", err
		}
		if op.Add.Label != "" {
			if err := s.UpdateNodeLabel(id, op.Add.Label); err != nil {
				return "add", err
			}
		}
		if len(op.Add.Config) > 0 {
			if err := s.UpdateNodeConfig(id, op.Add.Config); err != nil {
				return "add", err
			}
		}
		return "add", bind(op.Add.Ref, id)

	case op.Config != nil:
		id, err := resolve(op.Config.Node)
		if err != nil {
			return "config", err
		}
		return "config", s.UpdateNodeConfig(id, op.Config.Set)

	case op.Field != nil:
		id, err := resolve(op.Field.Node)
		if err != nil {
			return "field", err
		}
		return "field", s.SetConfigField(id, op.Field.Key, op.Field.Value)

	case op.Fields != nil:
		id, err := resolve(op.Fields.Node)
		if err != nil {
			return "fields_to_add", err
		}
		return "fields_to_add", s.SetFieldsToAdd(id, op.Fields.Rows)

	case op.Label != nil:
		id, err := resolve(op.Label.Node)
		if err != nil {
			return "label", err
		}
		return "label", s.UpdateNodeLabel(id, op.Label.Text)

	case op.Move != nil:
		id, err := resolve(op.Move.Node)
		if err != nil {
			return "move", err
		}
		return "move", s.MoveNode(id, op.Move.Position)

	case op.Delete != nil:
		id, err := resolve(op.Delete.Node)
		if err != nil {
			return "delete", err
		}
		return "delete", s.DeleteNode(id)

	case op.Connect != nil:
		src, err := resolve(op.Connect.Source)
		if err != nil {
			return "connect", err
		}
		dst, err := resolve(op.Connect.Target)
		if err != nil {
			return "connect", err
		}
		id, err := s.Connect(src, dst, op.Connect.SourceHandle, op.Connect.TargetHandle)
		if err != nil {
			return "connect", err
		}
		return "connect", bind(op.Connect.Ref, id)

	case op.Disconnect != nil:
		id, err := resolve(op.Disconnect.Edge)
		if err != nil {
			return "disconnect", err
		}
		return "disconnect", s.Disconnect(id)
	}
	return "", errors.New("empty operation")
}
