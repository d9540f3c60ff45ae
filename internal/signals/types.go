package signals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// #region signal

// Signal is a named feedback quantity. Positive strength reports improvement,
// negative reports decline.
type Signal struct {
	Name     string  `json:"name"`
	Strength float64 `json:"strength"`
}

// #endregion signal

// #region set

// Set is an insertion-ordered collection of signals with unique names.
// Put on an existing name replaces the value but keeps its position, so
// iteration order is the order names were first seen.
type Set struct {
	items []Signal
	pos   map[string]int
}

// NewSet builds a set from signals in order; duplicate names keep the last value.
func NewSet(sigs ...Signal) Set {
	var s Set
	for _, sig := range sigs {
		s.Put(sig.Name, sig.Strength)
	}
	return s
}

// FromMap builds a set from an unordered map, ordering names alphabetically
// so callers holding plain maps still get a deterministic update order.
func FromMap(m map[string]float64) Set {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	var s Set
	for _, n := range names {
		s.Put(n, m[n])
	}
	return s
}

// Put sets the strength for name.
func (s *Set) Put(name string, strength float64) {
	if s.pos == nil {
		s.pos = make(map[string]int)
	}
	if i, ok := s.pos[name]; ok {
		s.items[i].Strength = strength
		return
	}
	s.pos[name] = len(s.items)
	s.items = append(s.items, Signal{Name: name, Strength: strength})
}

// Get returns the strength for name.
func (s Set) Get(name string) (float64, bool) {
	i, ok := s.pos[name]
	if !ok {
		return 0, false
	}
	return s.items[i].Strength, true
}

// Len returns the number of signals.
func (s Set) Len() int { return len(s.items) }

// All returns the signals in iteration order.
func (s Set) All() []Signal {
	return append([]Signal(nil), s.items...)
}

// Names returns signal names in iteration order.
func (s Set) Names() []string {
	out := make([]string, len(s.items))
	for i, sig := range s.items {
		out[i] = sig.Name
	}
	return out
}

// Map returns the signals as a plain map.
func (s Set) Map() map[string]float64 {
	out := make(map[string]float64, len(s.items))
	for _, sig := range s.items {
		out[sig.Name] = sig.Strength
	}
	return out
}

// MarshalJSON encodes the set as a JSON object, preserving iteration order.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sig := range s.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sig.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(sig.Strength, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the document.
func (s *Set) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	*s = Set{}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("signals: expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return err
		}
		s.Put(name, v)
	}
	_, err = dec.Token()
	return err
}

// #endregion set
