package config

import (
	"encoding/json"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// orderedSections are the tables whose key order carries meaning
var orderedSections = []string{"feature_generators", "rescoring_engine"}

// tomlToJSON converts a TOML document to JSON and reports, per ordered
// section, the order in which its keys appear in the document.
func tomlToJSON(data []byte) ([]byte, map[string][]string, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	order, err := sectionOrder(data)
	if err != nil {
		return nil, nil, err
	}
	return raw, order, nil
}

// sectionOrder walks the TOML expressions in document order and records the
// first appearance of every key below ms2rescore.<section>.
func sectionOrder(data []byte) (map[string][]string, error) {
	order := make(map[string][]string)
	seen := make(map[string]bool)
	record := func(path []string) {
		if len(path) < 3 || path[0] != "ms2rescore" {
			return
		}
		for _, section := range orderedSections {
			if path[1] == section && !seen[section+"."+path[2]] {
				seen[section+"."+path[2]] = true
				order[section] = append(order[section], path[2])
			}
		}
	}

	var table []string
	p := unstable.Parser{}
	p.Reset(data)
	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			table = keyPath(e)
			record(table)
		case unstable.KeyValue:
			path := append(append([]string(nil), table...), keyPath(e)...)
			record(path)
			// Inline table: feature_generators = { basic = {}, rt = {} }
			if value := e.Value(); value != nil && value.Kind == unstable.InlineTable {
				children := value.Children()
				for children.Next() {
					child := children.Node()
					if child.Kind == unstable.KeyValue {
						record(append(append([]string(nil), path...), keyPath(child)...))
					}
				}
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return order, nil
}

func keyPath(n *unstable.Node) []string {
	var parts []string
	it := n.Key()
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}
