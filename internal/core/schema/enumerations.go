package schema

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
)

// EnumValue is one permitted value.
type EnumValue struct {
	Value       string
	Description string
}

// Enumeration is a named list of permitted values.
type Enumeration struct {
	Name   string
	Values []EnumValue
}

// EnumerationSet is one versioned file of enumerations.
type EnumerationSet struct {
	FileName     string
	Locked       bool
	Version      int
	Enumerations []Enumeration
}

// NewEnumerationSet builds a set from {version, enumerators: [{name, values: [{value, description}]}]}.
func NewEnumerationSet(fileName string, doc bson.D) (*EnumerationSet, error) {
	set := &EnumerationSet{
		FileName: fileName,
		Locked:   document.Bool(doc, "_locked", false),
		Version:  document.Int(doc, "version", 0),
	}

	items, _ := document.Array(doc, "enumerators")
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		entry, ok := item.(bson.D)
		if !ok {
			return nil, invalidEnumeration(fileName, "enumerator must be a mapping")
		}
		name := document.String(entry, "name", "")
		if name == "" {
			return nil, invalidEnumeration(fileName, "enumerator name is required")
		}
		if _, dup := seen[name]; dup {
			return nil, invalidEnumeration(fileName, "duplicate enumerator "+name)
		}
		seen[name] = struct{}{}

		enum := Enumeration{Name: name}
		values, _ := document.Array(entry, "values")
		for _, raw := range values {
			v, ok := raw.(bson.D)
			if !ok {
				return nil, invalidEnumeration(fileName, "value of "+name+" must be a mapping")
			}
			value, _ := document.Get(v, "value")
			enum.Values = append(enum.Values, EnumValue{
				Value:       scalarString(value),
				Description: document.String(v, "description", ""),
			})
		}
		set.Enumerations = append(set.Enumerations, enum)
	}
	return set, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func invalidEnumeration(fileName, reason string) error {
	event := events.New("ENU-01", "INVALID_ENUMERATION")
	return events.Fail(event, events.KindValidation, "invalid enumeration set "+fileName+": "+reason,
		map[string]any{"file_name": fileName})
}

func (s *EnumerationSet) Name() string     { return s.FileName }
func (s *EnumerationSet) IsLocked() bool   { return s.Locked }
func (s *EnumerationSet) SetLocked(v bool) { s.Locked = v }

// GetEnumValues returns the values of one enumeration in declaration order
// with duplicates removed.
func (s *EnumerationSet) GetEnumValues(name string) (bson.A, error) {
	for _, enum := range s.Enumerations {
		if enum.Name != name {
			continue
		}
		values := bson.A{}
		seen := make(map[string]struct{}, len(enum.Values))
		for _, v := range enum.Values {
			if _, dup := seen[v.Value]; dup {
				continue
			}
			seen[v.Value] = struct{}{}
			values = append(values, v.Value)
		}
		return values, nil
	}
	event := events.New("ENU-02", "GET_ENUM_VALUES")
	return nil, events.Fail(event, events.KindNotFound, "enumeration "+name+" not found",
		map[string]any{"enum": name, "version": s.Version})
}

// ToDocument renders the stored form. The database copy uses the same shape.
func (s *EnumerationSet) ToDocument() bson.D {
	enumerators := make(bson.A, len(s.Enumerations))
	for i, enum := range s.Enumerations {
		values := make(bson.A, len(enum.Values))
		for j, v := range enum.Values {
			values[j] = bson.D{{Key: "value", Value: v.Value}, {Key: "description", Value: v.Description}}
		}
		enumerators[i] = bson.D{{Key: "name", Value: enum.Name}, {Key: "values", Value: values}}
	}
	return bson.D{
		{Key: "file_name", Value: s.FileName},
		{Key: "_locked", Value: s.Locked},
		{Key: "version", Value: s.Version},
		{Key: "enumerators", Value: enumerators},
	}
}

// Upserter is the database operation used to publish enumerations.
type Upserter interface {
	Upsert(ctx context.Context, collection string, match, data bson.D) (bson.D, error)
}

// Upsert publishes the set to collection keyed by version.
func (s *EnumerationSet) Upsert(ctx context.Context, db Upserter, collection string) (*events.Event, error) {
	event := events.New("ENU-01-"+s.FileName, "UPSERT_ENUMERATION").Set("version", s.Version)
	if _, err := db.Upsert(ctx, collection, bson.D{{Key: "version", Value: s.Version}}, s.ToDocument()); err != nil {
		return nil, events.Wrap(event, err, "failed to upsert enumerations "+s.FileName)
	}
	event.Succeed()
	return event, nil
}

// Enumerators is every enumeration set of the enumerator folder.
type Enumerators struct {
	Sets []*EnumerationSet
}

// ForVersion selects the set whose version equals the enumerator component of
// a version number.
func (e *Enumerators) ForVersion(version int) (*EnumerationSet, error) {
	for _, set := range e.Sets {
		if set.Version == version {
			return set, nil
		}
	}
	event := events.New("ENU-03", "GET_VERSION")
	return nil, events.Fail(event, events.KindNotFound, fmt.Sprintf("enumeration version %d not found", version),
		map[string]any{"version": version})
}

// UpsertAll publishes every set. The first failure aborts the batch.
func (e *Enumerators) UpsertAll(ctx context.Context, db Upserter, collection string) (*events.Event, error) {
	event := events.New("ENU-04", "UPSERT_ENUMERATORS_TO_DATABASE")
	for _, set := range e.Sets {
		sub, err := set.Upsert(ctx, db, collection)
		if err != nil {
			return event, events.Wrap(event, err, "cannot upsert all enumerators")
		}
		event.Append(sub)
	}
	event.Succeed()
	return event, nil
}
