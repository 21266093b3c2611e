package normalize

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var knownFields = map[Field]struct{}{
	FieldTicketID:  {},
	FieldNote:      {},
	FieldStatus:    {},
	FieldAssignee:  {},
	FieldActionID:  {},
	FieldAuthor:    {},
	FieldFirstName: {},
	FieldLastName:  {},
}

// LoadAliasFile reads alias overrides from a YAML file mapping canonical
// field names to ordered key lists:
//
//	status: [state_label, status]
//	assignee: [handler, assignee]
//
// A listed field replaces its default key list entirely.
func LoadAliasFile(path string) ([]Alias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases decodes the alias override document.
func ParseAliases(data []byte) ([]Alias, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}
	fields := make([]string, 0, len(raw))
	for name := range raw {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	table := make([]Alias, 0, len(raw))
	for _, name := range fields {
		field := Field(strings.TrimSpace(name))
		if _, ok := knownFields[field]; !ok {
			return nil, fmt.Errorf("unknown canonical field %q", name)
		}
		var keys []string
		for _, k := range raw[name] {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("field %q has no keys", name)
		}
		table = append(table, Alias{Field: field, Keys: keys})
	}
	return table, nil
}

// WithOverrides returns DefaultAliases followed by overrides, so that New
// lets each override win for its field.
func WithOverrides(overrides []Alias) []Alias {
	table := make([]Alias, 0, len(DefaultAliases)+len(overrides))
	table = append(table, DefaultAliases...)
	return append(table, overrides...)
}
