package ast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Decode reads a node tree from its wire form. A query root must carry the
// current WireVersion.
func Decode(data []byte) (Node, error) {
	return decodeNode(data, "wire root")
}

type envelope struct {
	Type Kind `json:"$type"`
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeNode(raw json.RawMessage, context string) (Node, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("missing node in %s", context)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid node in %s: %w", context, err)
	}

	var n Node
	switch env.Type {
	case KindQuery:
		n = &Query{}
	case KindSelect:
		n = &Select{}
	case KindFrom:
		n = &From{}
	case KindColumn:
		n = &Column{}
	case KindWhere:
		n = &Where{}
	case KindLogical:
		n = &Logical{}
	case KindComparison:
		n = &Comparison{}
	case KindString:
		n = &StringValue{}
	case KindNumber:
		n = &NumberValue{}
	default:
		return nil, &UnsupportedNodeError{Kind: env.Type, Context: context}
	}

	if err := json.Unmarshal(raw, n); err != nil {
		return nil, err
	}
	return n, nil
}

func decodeCondition(raw json.RawMessage, context string) (Condition, error) {
	n, err := decodeNode(raw, context)
	if err != nil {
		return nil, err
	}
	c, ok := n.(Condition)
	if !ok {
		return nil, Unsupported(n, context)
	}
	return c, nil
}

func decodeValue(raw json.RawMessage, context string) (Value, error) {
	n, err := decodeNode(raw, context)
	if err != nil {
		return nil, err
	}
	v, ok := n.(Value)
	if !ok {
		return nil, Unsupported(n, context)
	}
	return v, nil
}

func checkType(got, want Kind) error {
	if got != want {
		return &UnsupportedNodeError{Kind: got, Context: fmt.Sprintf("%s node", want)}
	}
	return nil
}

// ---------- Query ----------

type queryWire struct {
	Type    Kind            `json:"$type"`
	Version int             `json:"version"`
	Select  json.RawMessage `json:"select"`
	Where   json.RawMessage `json:"where"`
}

// MarshalJSON implements json.Marshaler.
func (q *Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    Kind    `json:"$type"`
		Version int     `json:"version"`
		Select  *Select `json:"select"`
		Where   *Where  `json:"where"`
	}{KindQuery, WireVersion, q.Select, q.Where})
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *Query) UnmarshalJSON(data []byte) error {
	var w queryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindQuery); err != nil {
		return err
	}
	if w.Version != WireVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, w.Version, WireVersion)
	}
	if isNull(w.Select) {
		return errors.New("query has no select")
	}

	q.Select = &Select{}
	if err := json.Unmarshal(w.Select, q.Select); err != nil {
		return err
	}
	q.Where = nil
	if !isNull(w.Where) {
		q.Where = &Where{}
		if err := json.Unmarshal(w.Where, q.Where); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Select / From / Column ----------

type selectWire struct {
	Type    Kind      `json:"$type"`
	Columns []*Column `json:"columns"`
	From    *From     `json:"from"`
}

// MarshalJSON implements json.Marshaler.
func (s *Select) MarshalJSON() ([]byte, error) {
	cols := s.Columns
	if cols == nil {
		cols = []*Column{}
	}
	return json.Marshal(selectWire{KindSelect, cols, s.From})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Select) UnmarshalJSON(data []byte) error {
	var w selectWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindSelect); err != nil {
		return err
	}
	if w.From == nil {
		return errors.New("select has no from")
	}
	for _, c := range w.Columns {
		if c == nil {
			return errors.New("select has a null column")
		}
	}
	s.Columns = w.Columns
	s.From = w.From
	return nil
}

type fromWire struct {
	Type  Kind   `json:"$type"`
	Table string `json:"table"`
}

// MarshalJSON implements json.Marshaler.
func (f *From) MarshalJSON() ([]byte, error) {
	return json.Marshal(fromWire{KindFrom, f.Table})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *From) UnmarshalJSON(data []byte) error {
	var w fromWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindFrom); err != nil {
		return err
	}
	f.Table = w.Table
	return nil
}

type columnWire struct {
	Type       Kind   `json:"$type"`
	Identifier string `json:"identifier"`
}

// MarshalJSON implements json.Marshaler.
func (c *Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(columnWire{KindColumn, c.Identifier})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Column) UnmarshalJSON(data []byte) error {
	var w columnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindColumn); err != nil {
		return err
	}
	c.Identifier = w.Identifier
	return nil
}

// ---------- Where / Logical / Comparison ----------

type whereWire struct {
	Type Kind            `json:"$type"`
	Node json.RawMessage `json:"node"`
}

// MarshalJSON implements json.Marshaler.
func (w *Where) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Kind      `json:"$type"`
		Node Condition `json:"node"`
	}{KindWhere, w.Condition})
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *Where) UnmarshalJSON(data []byte) error {
	var ww whereWire
	if err := json.Unmarshal(data, &ww); err != nil {
		return err
	}
	if err := checkType(ww.Type, KindWhere); err != nil {
		return err
	}
	cond, err := decodeCondition(ww.Node, "where clause")
	if err != nil {
		return err
	}
	w.Condition = cond
	return nil
}

type logicalWire struct {
	Type  Kind            `json:"$type"`
	Op    LogicalOp       `json:"operation"`
	Left  json.RawMessage `json:"left"`
	Right json.RawMessage `json:"right"`
}

// MarshalJSON implements json.Marshaler.
func (l *Logical) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  Kind      `json:"$type"`
		Op    LogicalOp `json:"operation"`
		Left  Condition `json:"left"`
		Right Condition `json:"right"`
	}{KindLogical, l.Op, l.Left, l.Right})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Logical) UnmarshalJSON(data []byte) error {
	var w logicalWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindLogical); err != nil {
		return err
	}
	if w.Op != And && w.Op != Or {
		return fmt.Errorf("unknown logical operation %q", w.Op)
	}
	left, err := decodeCondition(w.Left, "logical left operand")
	if err != nil {
		return err
	}
	right, err := decodeCondition(w.Right, "logical right operand")
	if err != nil {
		return err
	}
	l.Op, l.Left, l.Right = w.Op, left, right
	return nil
}

type comparisonWire struct {
	Type   Kind            `json:"$type"`
	Op     ComparisonOp    `json:"operation"`
	Column *Column         `json:"column"`
	Value  json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (c *Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   Kind         `json:"$type"`
		Op     ComparisonOp `json:"operation"`
		Column *Column      `json:"column"`
		Value  Value        `json:"value"`
	}{KindComparison, c.Op, c.Column, c.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Comparison) UnmarshalJSON(data []byte) error {
	var w comparisonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindComparison); err != nil {
		return err
	}
	switch w.Op {
	case Equal, GreaterThan, LessThan:
	default:
		return fmt.Errorf("unknown comparison operation %q", w.Op)
	}
	if w.Column == nil {
		return errors.New("comparison has no column")
	}
	v, err := decodeValue(w.Value, "comparison operand")
	if err != nil {
		return err
	}
	c.Op, c.Column, c.Value = w.Op, w.Column, v
	return nil
}

// ---------- Values ----------

type stringWire struct {
	Type  Kind   `json:"$type"`
	Value string `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (v *StringValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(stringWire{KindString, v.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *StringValue) UnmarshalJSON(data []byte) error {
	var w stringWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindString); err != nil {
		return err
	}
	v.Value = w.Value
	return nil
}

type numberWire struct {
	Type  Kind  `json:"$type"`
	Value int64 `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (v *NumberValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(numberWire{KindNumber, v.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *NumberValue) UnmarshalJSON(data []byte) error {
	var w numberWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkType(w.Type, KindNumber); err != nil {
		return err
	}
	v.Value = w.Value
	return nil
}
