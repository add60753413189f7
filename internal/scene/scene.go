// Package scene defines the scene record model parsed from processed
// screenplay documents, and the decoder that turns a JSON document into
// a list of scenes.
//
// Several production attributes are heterogeneously typed across source
// documents: the same field may arrive as a string in one document and
// as an array of strings in another. Those are modeled as the Field
// tagged union, decoded exactly once here so that downstream code never
// has to inspect raw JSON shapes.
package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldKind discriminates the variants of a Field.
type FieldKind int

const (
	// FieldAbsent means the source field was missing, null, or never set.
	FieldAbsent FieldKind = iota
	// FieldScalar means the source field was a single value.
	FieldScalar
	// FieldList means the source field was an array of values.
	FieldList
)

// Field is a tagged union over the string-or-array-or-absent shapes the
// source documents use for production attributes.
type Field struct {
	Kind   FieldKind
	Scalar string
	List   []string
}

// ScalarField constructs a scalar-valued Field.
func ScalarField(value string) Field {
	return Field{Kind: FieldScalar, Scalar: value}
}

// ListField constructs a list-valued Field.
func ListField(values ...string) Field {
	return Field{Kind: FieldList, List: values}
}

// UnmarshalJSON decodes the heterogeneous source shapes:
// null -> Absent, string -> Scalar, array -> List (elements stringified),
// any other scalar -> Scalar holding the literal token.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Field{Kind: FieldAbsent}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode scalar field: %w", err)
		}
		*f = Field{Kind: FieldScalar, Scalar: s}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode list field: %w", err)
		}
		list := make([]string, 0, len(raw))
		for _, el := range raw {
			list = append(list, stringifyElement(el))
		}
		*f = Field{Kind: FieldList, List: list}
	default:
		// Numbers and booleans keep their literal representation.
		*f = Field{Kind: FieldScalar, Scalar: string(data)}
	}

	return nil
}

// stringifyElement renders one array element as a string. Non-string
// elements keep their JSON literal representation.
func stringifyElement(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Scene is one structured unit parsed from a processed document.
type Scene struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	Metadata       Metadata       `json:"metadata"`
	ProductionData ProductionData `json:"production_data"`
}

// Metadata carries the descriptive attributes of a scene.
type Metadata struct {
	SceneNumber       string   `json:"scene_number"`
	Setting           string   `json:"setting"`
	LocationDetails   string   `json:"location_details"`
	CharactersPresent []string `json:"characters_present"`
	KeyEventsSummary  string   `json:"key_events_summary"`
	EmotionalTone     string   `json:"emotional_tone"`
}

// ProductionData carries the production planning attributes of a scene.
// The Field-typed members vary between string and array across inputs.
type ProductionData struct {
	Costume        string   `json:"costume"`
	MakeupAndHair  Field    `json:"makeup_and_hair"`
	Props          []string `json:"props"`
	Extras         Field    `json:"extras"`
	Stunts         Field    `json:"stunts"`
	SpecialEffects Field    `json:"special_effects"`
	Music          Field    `json:"music"`
}

// ErrEmptyDocument indicates a source document with no scenes in it.
var ErrEmptyDocument = errors.New("document contains no scenes")

// ParseError indicates a source document that could not be decoded into scenes.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse scenes: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse scenes: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes a JSON document into a list of scenes. An empty payload,
// a structurally invalid payload, or an empty scene list is a *ParseError.
func Parse(data []byte) ([]Scene, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Reason: "empty payload", Err: ErrEmptyDocument}
	}

	var scenes []Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	if len(scenes) == 0 {
		return nil, &ParseError{Reason: "no scene records", Err: ErrEmptyDocument}
	}

	return scenes, nil
}
