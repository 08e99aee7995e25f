package generation

import "sort"

// Kind names a content type served by the pipeline.
type Kind string

const (
	KindStrategy       Kind = "strategy"
	KindWeeklyPlan     Kind = "weekly_plan"
	KindActivitySet    Kind = "activity_set"
	KindEnrichmentCard Kind = "enrichment_card"
)

// FieldType is the canonical type of one output field.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldStringList FieldType = "string_list"
	FieldObjectList FieldType = "object_list"
	FieldEnum       FieldType = "enum"
	FieldInteger    FieldType = "integer"
)

// Field describes one key of the canonical contract.
type Field struct {
	Key  string    `json:"key"`
	Type FieldType `json:"type"`
	Hint string    `json:"hint,omitempty"`
	// Items describes object-list elements.
	Items []Field `json:"items,omitempty"`
	// Values is the accepted set for enum fields.
	Values []string `json:"values,omitempty"`
	// Min and Max bound integer fields.
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
	// Echo supplies the caller default for enum and integer fields, usually a
	// value the request already carried.
	Echo func(Request) any `json:"-"`
}

// Schema is the descriptor that parameterizes the pipeline for one content kind.
type Schema struct {
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"`
	TitleKey    string  `json:"title_key"`
	Fields      []Field `json:"fields"`
}

// Field returns the descriptor for key.
func (s Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

var registry = map[Kind]Schema{}

// Register adds or replaces a schema. It is meant to be called from init.
func Register(s Schema) {
	registry[s.Kind] = s
}

// LookupSchema returns the schema registered for kind.
func LookupSchema(kind Kind) (Schema, bool) {
	s, ok := registry[kind]
	return s, ok
}

// Schemas lists registered schemas ordered by kind.
func Schemas() []Schema {
	out := make([]Schema, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
