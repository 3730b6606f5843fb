package validate

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/reverscodes/codes-cli/internal/model"
)

// listKeys are the top-level keys that may hold a record list.
var listKeys = []string{"codes", "active", "active_codes"}

// LoadFile reads records from a YAML or JSON file. The file is either a
// list of objects or an object holding the list under one of listKeys.
// Entries that are not objects become empty records so they are reported
// as invalid instead of silently dropped.
func LoadFile(path string) ([]model.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: read %s", path)
	}
	return Decode(data)
}

// Decode parses records from YAML or JSON bytes.
func Decode(data []byte) ([]model.RawRecord, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "validate: decode records")
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, k := range listKeys {
			if list, ok := v[k].([]any); ok {
				items = list
				break
			}
		}
		if items == nil {
			return nil, eris.New("validate: no record list found")
		}
	case nil:
		return nil, nil
	default:
		return nil, eris.Errorf("validate: unexpected document type %T", doc)
	}

	out := make([]model.RawRecord, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		out = append(out, model.RawRecordFromMap(m))
	}
	return out, nil
}
