package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
)

// TypeKind is the form of a type catalog node.
type TypeKind string

const (
	KindObject    TypeKind = "object"
	KindArray     TypeKind = "array"
	KindSimple    TypeKind = "simple_primitive"
	KindComplex   TypeKind = "complex_primitive"
	KindReference TypeKind = "reference"
)

// TypeProperty is one node of a reusable type definition. A node is exactly one
// of an object, an array, a universal primitive (schema), a typed primitive
// (json_type / bson_type) or a bare reference to another type.
type TypeProperty struct {
	Name        string
	Description string
	Type        string
	Required    bool
	Kind        TypeKind

	Schema   bson.D
	JSONType bson.D
	BSONType bson.D

	AdditionalProperties bool
	Properties           []*TypeProperty
	Items                *TypeProperty
}

// NewTypeProperty builds a node and rejects documents that mix forms.
func NewTypeProperty(name string, doc bson.D) (*TypeProperty, error) {
	p := &TypeProperty{
		Name:        name,
		Description: document.String(doc, "description", ""),
		Type:        document.String(doc, "type", ""),
		Required:    document.Bool(doc, "required", false),
	}

	schema, hasSchema := document.Doc(doc, "schema")
	jsonType, hasJSON := document.Doc(doc, "json_type")
	bsonType, hasBSON := document.Doc(doc, "bson_type")
	structural := p.Type == string(KindObject) || p.Type == string(KindArray)

	forms := 0
	for _, present := range []bool{hasSchema, hasJSON || hasBSON, structural} {
		if present {
			forms++
		}
	}
	nested := hasSchema && (document.Has(schema, "json_type") || document.Has(schema, "bson_type"))
	if forms > 1 || nested {
		return nil, invalidType(name, "a type must be exactly one of schema, json_type/bson_type or object/array")
	}

	switch {
	case p.Type == string(KindObject):
		p.Kind = KindObject
		p.AdditionalProperties = document.Bool(doc, "additional_properties", false)
		if err := p.buildProperties(doc); err != nil {
			return nil, err
		}
	case p.Type == string(KindArray):
		p.Kind = KindArray
		raw, ok := document.Doc(doc, "items")
		if !ok {
			return nil, invalidType(name, "array types require items")
		}
		items, err := NewTypeProperty("items", raw)
		if err != nil {
			return nil, err
		}
		p.Items = items
	case hasSchema:
		p.Kind, p.Type = KindSimple, string(KindSimple)
		p.Schema = document.CloneDoc(schema)
	case hasJSON || hasBSON:
		p.Kind, p.Type = KindComplex, string(KindComplex)
		p.JSONType = document.CloneDoc(jsonType)
		p.BSONType = document.CloneDoc(bsonType)
	case p.Type == "" || p.Type == string(KindSimple) || p.Type == string(KindComplex):
		return nil, invalidType(name, "a type needs a schema, json_type/bson_type, object/array structure or a type reference")
	default:
		p.Kind = KindReference
	}
	return p, nil
}

func (p *TypeProperty) buildProperties(doc bson.D) error {
	raw, ok := document.Get(doc, "properties")
	if !ok {
		return nil
	}
	props, ok := raw.(bson.D)
	if !ok {
		return invalidType(p.Name, "object properties must be a mapping of name to type")
	}
	for _, e := range props {
		child, ok := e.Value.(bson.D)
		if !ok {
			return invalidType(e.Key, "type property must be a mapping")
		}
		built, err := NewTypeProperty(e.Key, child)
		if err != nil {
			return err
		}
		p.Properties = append(p.Properties, built)
	}
	return nil
}

func invalidType(name, reason string) error {
	event := events.New("TYP-02", "INVALID_TYPE_DEFINITION")
	return events.Fail(event, events.KindValidation, "invalid type definition "+name+": "+reason,
		map[string]any{"name": name})
}

// ToDocument renders the node back to its catalog form.
func (p *TypeProperty) ToDocument() bson.D {
	doc := bson.D{
		{Key: "description", Value: p.Description},
		{Key: "type", Value: p.Type},
		{Key: "required", Value: p.Required},
	}
	switch p.Kind {
	case KindObject:
		props := make(bson.D, len(p.Properties))
		for i, child := range p.Properties {
			props[i] = bson.E{Key: child.Name, Value: child.ToDocument()}
		}
		doc = append(doc,
			bson.E{Key: "properties", Value: props},
			bson.E{Key: "additional_properties", Value: p.AdditionalProperties})
	case KindArray:
		doc = append(doc, bson.E{Key: "items", Value: p.Items.ToDocument()})
	case KindSimple:
		doc = append(doc, bson.E{Key: "schema", Value: document.CloneDoc(p.Schema)})
	case KindComplex:
		if p.JSONType != nil {
			doc = append(doc, bson.E{Key: "json_type", Value: document.CloneDoc(p.JSONType)})
		}
		if p.BSONType != nil {
			doc = append(doc, bson.E{Key: "bson_type", Value: document.CloneDoc(p.BSONType)})
		}
	}
	return doc
}

// Render renders the node in the given dialect.
func (p *TypeProperty) Render(r *Renderer, d Dialect, trail Trail) (bson.D, error) {
	switch p.Kind {
	case KindObject:
		properties := make(bson.D, 0, len(p.Properties))
		required := bson.A{}
		for _, child := range p.Properties {
			rendered, err := child.Render(r, d, trail)
			if err != nil {
				return nil, err
			}
			properties = append(properties, bson.E{Key: child.Name, Value: rendered})
			if child.Required {
				required = append(required, child.Name)
			}
		}
		schema := bson.D{
			{Key: "description", Value: p.Description},
			{Key: d.TypeKey(), Value: "object"},
			{Key: "properties", Value: properties},
			{Key: "additionalProperties", Value: p.AdditionalProperties},
		}
		if len(required) > 0 {
			schema = append(schema, bson.E{Key: "required", Value: required})
		}
		return schema, nil
	case KindArray:
		items, err := p.Items.Render(r, d, trail)
		if err != nil {
			return nil, err
		}
		return bson.D{
			{Key: "description", Value: p.Description},
			{Key: d.TypeKey(), Value: "array"},
			{Key: "items", Value: items},
		}, nil
	case KindSimple:
		schema := document.Merge(bson.D{{Key: "description", Value: p.Description}}, p.Schema)
		if d == BSON {
			schema = document.Rename(schema, "type", "bsonType")
		}
		return schema, nil
	case KindComplex:
		fragment := p.JSONType
		if d == BSON {
			fragment = p.BSONType
		}
		return document.Merge(bson.D{{Key: "description", Value: p.Description}}, fragment), nil
	default:
		return r.resolveType(p.Type, d, trail)
	}
}

// Type is a named entry of the type catalog.
type Type struct {
	FileName string
	Locked   bool
	Root     *TypeProperty
}

// NewType builds a type from its stored document {file_name, _locked, root}.
// A document without root is treated as the root itself.
func NewType(fileName string, doc bson.D) (*Type, error) {
	rootDoc, ok := document.Doc(doc, "root")
	if !ok {
		rootDoc = doc
	}
	root, err := NewTypeProperty("root", rootDoc)
	if err != nil {
		event := events.New("TYP-CONSTRUCTOR", "TYPE_CONSTRUCTOR").Set("file_name", fileName)
		return nil, events.Wrap(event, err, "failed to construct type from "+fileName)
	}
	return &Type{FileName: fileName, Locked: document.Bool(doc, "_locked", false), Root: root}, nil
}

func (t *Type) Name() string     { return t.FileName }
func (t *Type) IsLocked() bool   { return t.Locked }
func (t *Type) SetLocked(v bool) { t.Locked = v }

func (t *Type) ToDocument() bson.D {
	return bson.D{
		{Key: "file_name", Value: t.FileName},
		{Key: "_locked", Value: t.Locked},
		{Key: "root", Value: t.Root.ToDocument()},
	}
}

// Render renders the type with a trail seeded by its own file name.
func (t *Type) Render(r *Renderer, d Dialect) (bson.D, error) {
	return t.Root.Render(r, d, Trail{types: []string{t.FileName}})
}
