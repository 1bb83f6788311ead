// Package labels defines the closed set of sign labels the engine can emit,
// together with the promotion table and the set of labels that need the
// sequence recognition path. All tables are validated once at load time.
package labels

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownLabel is returned when a label name or value is not in the table.
var ErrUnknownLabel = errors.New("unknown label")

// Label is an interned sign label. The zero value None means "no detection".
type Label uint16

// None is the distinct "no detection" label.
const None Label = 0

// Table interns label names into Label values.
type Table struct {
	names []string // names[0] is reserved for None
	index map[string]Label
}

// NewTable creates a Table from the given label names.
// Names must be non-empty and unique.
func NewTable(names ...string) (*Table, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("label table needs at least one label")
	}
	if len(names) >= 1<<16-1 {
		return nil, fmt.Errorf("label table too large: %d labels", len(names))
	}

	t := &Table{
		names: make([]string, 1, len(names)+1),
		index: make(map[string]Label, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("label %d has an empty name", i)
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("duplicate label %q", name)
		}
		t.names = append(t.names, name)
		t.index[name] = Label(len(t.names) - 1)
	}
	return t, nil
}

// Lookup resolves a label name.
func (t *Table) Lookup(name string) (Label, error) {
	l, ok := t.index[name]
	if !ok {
		return None, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return l, nil
}

// Contains reports whether l is a real label of this table.
func (t *Table) Contains(l Label) bool {
	return l != None && int(l) < len(t.names)
}

// Name returns the label's name. None and unknown labels have an empty name.
func (t *Table) Name(l Label) string {
	if !t.Contains(l) {
		return ""
	}
	return t.names[l]
}

// Len returns the number of labels, not counting None.
func (t *Table) Len() int {
	return len(t.names) - 1
}

// Labels returns every label in declaration order.
func (t *Table) Labels() []Label {
	out := make([]Label, 0, t.Len())
	for i := 1; i < len(t.names); i++ {
		out = append(out, Label(i))
	}
	return out
}

// PromotionTable maps a base label to its compound (tense) label.
type PromotionTable struct {
	to map[Label]Label
}

// NewPromotionTable builds a promotion table over t from base→compound names.
// Both sides must exist in t, a label cannot promote to itself and a compound
// label cannot be promoted again.
func NewPromotionTable(t *Table, pairs map[string]string) (*PromotionTable, error) {
	p := &PromotionTable{to: make(map[Label]Label, len(pairs))}
	for base, compound := range pairs {
		from, err := t.Lookup(base)
		if err != nil {
			return nil, fmt.Errorf("promotion base: %w", err)
		}
		to, err := t.Lookup(compound)
		if err != nil {
			return nil, fmt.Errorf("promotion target: %w", err)
		}
		if from == to {
			return nil, fmt.Errorf("label %q cannot promote to itself", base)
		}
		p.to[from] = to
	}
	for base, compound := range p.to {
		if _, chained := p.to[compound]; chained {
			return nil, fmt.Errorf("compound label %q of %q is itself promotable", t.Name(compound), t.Name(base))
		}
	}
	return p, nil
}

// Promote returns the compound label for base, if base is promotable.
func (p *PromotionTable) Promote(base Label) (Label, bool) {
	if p == nil {
		return None, false
	}
	compound, ok := p.to[base]
	return compound, ok
}

// Pairs returns the table as [base, compound] pairs ordered by base.
func (p *PromotionTable) Pairs() [][2]Label {
	if p == nil {
		return nil
	}
	pairs := make([][2]Label, 0, len(p.to))
	for base, compound := range p.to {
		pairs = append(pairs, [2]Label{base, compound})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

// SequenceSet is the set of labels recognized on the sequence path.
type SequenceSet struct {
	members map[Label]struct{}
}

// NewSequenceSet builds a SequenceSet over t from label names.
func NewSequenceSet(t *Table, names []string) (*SequenceSet, error) {
	s := &SequenceSet{members: make(map[Label]struct{}, len(names))}
	for _, name := range names {
		l, err := t.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("sequence label: %w", err)
		}
		s.members[l] = struct{}{}
	}
	return s, nil
}

// Contains reports whether l needs the sequence path.
func (s *SequenceSet) Contains(l Label) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[l]
	return ok
}

// Labels returns the members in ascending order.
func (s *SequenceSet) Labels() []Label {
	if s == nil {
		return nil
	}
	out := make([]Label, 0, len(s.members))
	for l := range s.members {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set bundles a label table with its promotion table and sequence set.
type Set struct {
	Table      *Table
	Promotions *PromotionTable
	Sequence   *SequenceSet
}

// NewSet validates and builds a complete label Set.
func NewSet(names []string, promotions map[string]string, sequence []string) (*Set, error) {
	table, err := NewTable(names...)
	if err != nil {
		return nil, err
	}
	promo, err := NewPromotionTable(table, promotions)
	if err != nil {
		return nil, err
	}
	seq, err := NewSequenceSet(table, sequence)
	if err != nil {
		return nil, err
	}
	return &Set{Table: table, Promotions: promo, Sequence: seq}, nil
}
