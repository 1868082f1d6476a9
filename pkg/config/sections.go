package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Section is one named feature generator or rescoring engine with its options.
type Section struct {
	Name    string
	Options map[string]any
}

// Sections is an ordered set of sections, encoded as a JSON object whose key
// order is preserved.
type Sections []Section

// Names returns the section names in order.
func (s Sections) Names() []string {
	names := make([]string, len(s))
	for i, sec := range s {
		names[i] = sec.Name
	}
	return names
}

// Get returns the section with the given name.
func (s Sections) Get(name string) (Section, bool) {
	for _, sec := range s {
		if sec.Name == name {
			return sec, true
		}
	}
	return Section{}, false
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (s *Sections) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected an object of named sections")
	}

	var sections Sections
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected section name, got %v", tok)
		}
		var options map[string]any
		if err := dec.Decode(&options); err != nil {
			return fmt.Errorf("section '%s': %w", name, err)
		}
		if options == nil {
			options = map[string]any{}
		}
		sections = append(sections, Section{Name: name, Options: options})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = sections
	return nil
}

// MarshalJSON encodes the sections as a JSON object in order.
func (s Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sec := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sec.Name)
		if err != nil {
			return nil, err
		}
		options := sec.Options
		if options == nil {
			options = map[string]any{}
		}
		value, err := json.Marshal(options)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// reorder sorts sections by their position in order; names not listed keep
// their relative order after the listed ones.
func (s Sections) reorder(order []string) {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	rank := func(name string) int {
		if p, ok := pos[name]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(s, func(i, j int) bool {
		return rank(s[i].Name) < rank(s[j].Name)
	})
}
