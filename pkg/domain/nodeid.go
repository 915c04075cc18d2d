package domain

import (
	"fmt"
	"strconv"
)

type idKind uint8

const (
	idUnset idKind = iota
	idDurable
	idTemporary
)

// NodeID identifies a visual node or edge.
// It is either Durable (assigned by the backend) or Temporary (allocated by the editor
// before the entity was ever saved). Both render as their decimal string, temporary
// values are always negative.
type NodeID struct {
	value int64
	kind  idKind
}

// Durable wraps an identifier assigned by the backend.
func Durable(id int64) NodeID {
	return NodeID{value: id, kind: idDurable}
}

// Temporary wraps a session-local placeholder. Positive input is negated.
func Temporary(n int64) NodeID {
	if n > 0 {
		n = -n
	}
	return NodeID{value: n, kind: idTemporary}
}

// ParseNodeID parses the string form produced by NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	if n < 0 {
		return Temporary(n), nil
	}
	return Durable(n), nil
}

// MustParseNodeID is like ParseNodeID but panics on malformed input. Intended for tests and literals.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether the id was never set.
func (id NodeID) IsZero() bool { return id.kind == idUnset }

// IsTemporary reports whether the id is a session-local placeholder.
func (id NodeID) IsTemporary() bool { return id.kind == idTemporary }

// IsDurable reports whether the id was assigned by the backend.
func (id NodeID) IsDurable() bool { return id.kind == idDurable }

// Int64 returns the numeric value. For temporary ids this is the negative placeholder,
// which the backend accepts as a provisional reference inside a single save payload.
func (id NodeID) Int64() int64 { return id.value }

// String renders the canvas key ("12", "-3"). Unset ids render as "".
func (id NodeID) String() string {
	if id.kind == idUnset {
		return ""
	}
	return strconv.FormatInt(id.value, 10)
}

// MarshalText encodes the id as its string form so it can be used in JSON and YAML.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes the string form.
func (id *NodeID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = NodeID{}
		return nil
	}
	parsed, err := ParseNodeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
