package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
)

// ObjectProperty has ordered, uniquely named children.
type ObjectProperty struct {
	Base
	AdditionalProperties bool
	Properties           []Property
}

func newObject(base Base, doc bson.D) (Property, error) {
	children, err := newChildren(doc, "properties")
	if err != nil {
		return nil, err
	}
	return &ObjectProperty{
		Base:                 base,
		AdditionalProperties: document.Bool(doc, "additionalProperties", false),
		Properties:           children,
	}, nil
}

func (p *ObjectProperty) ToDocument() bson.D {
	children := make(bson.A, len(p.Properties))
	for i, child := range p.Properties {
		children[i] = child.ToDocument()
	}
	return append(p.toDocument(),
		bson.E{Key: "additionalProperties", Value: p.AdditionalProperties},
		bson.E{Key: "properties", Value: children},
	)
}

func (p *ObjectProperty) Schema(r *Renderer, d Dialect, trail Trail) (bson.D, error) {
	properties := make(bson.D, 0, len(p.Properties))
	required := bson.A{}
	for _, child := range p.Properties {
		rendered, err := child.Schema(r, d, trail)
		if err != nil {
			return nil, err
		}
		properties = append(properties, bson.E{Key: child.Name(), Value: rendered})
		if child.Required() {
			required = append(required, child.Name())
		}
	}

	schema := append(p.header(d, TypeObject),
		bson.E{Key: "properties", Value: properties},
		bson.E{Key: "additionalProperties", Value: p.AdditionalProperties},
	)
	if len(required) > 0 {
		schema = append(schema, bson.E{Key: "required", Value: required})
	}
	return schema, nil
}

// ArrayProperty renders its items with the array.
type ArrayProperty struct {
	Base
	Items Property
}

func newArray(base Base, doc bson.D) (Property, error) {
	raw, ok := document.Get(doc, "items")
	if !ok {
		raw = bson.D{}
	}
	items, err := newChild(raw, "items")
	if err != nil {
		return nil, err
	}
	return &ArrayProperty{Base: base, Items: items}, nil
}

func (p *ArrayProperty) ToDocument() bson.D {
	return append(p.toDocument(), bson.E{Key: "items", Value: p.Items.ToDocument()})
}

func (p *ArrayProperty) Schema(r *Renderer, d Dialect, trail Trail) (bson.D, error) {
	items, err := p.Items.Schema(r, d, trail)
	if err != nil {
		return nil, err
	}
	return append(p.header(d, TypeArray), bson.E{Key: "items", Value: items}), nil
}

func enumName(doc bson.D) string {
	if name := document.String(doc, "enums", ""); name != "" {
		return name
	}
	return document.String(doc, "enum", "")
}

// EnumProperty is a string restricted to the values of one enumeration.
type EnumProperty struct {
	Base
	Enums string
}

func newEnum(base Base, doc bson.D) (Property, error) {
	return &EnumProperty{Base: base, Enums: enumName(doc)}, nil
}

func (p *EnumProperty) ToDocument() bson.D {
	return append(p.toDocument(), bson.E{Key: "enums", Value: p.Enums})
}

func (p *EnumProperty) Schema(r *Renderer, d Dialect, _ Trail) (bson.D, error) {
	values, err := r.enumValues(p.Enums)
	if err != nil {
		return nil, err
	}
	return append(p.header(d, "string"), bson.E{Key: "enum", Value: values}), nil
}

// EnumArrayProperty is an array of strings restricted to one enumeration.
type EnumArrayProperty struct {
	Base
	Enums string
}

func newEnumArray(base Base, doc bson.D) (Property, error) {
	return &EnumArrayProperty{Base: base, Enums: enumName(doc)}, nil
}

func (p *EnumArrayProperty) ToDocument() bson.D {
	return append(p.toDocument(), bson.E{Key: "enums", Value: p.Enums})
}

func (p *EnumArrayProperty) Schema(r *Renderer, d Dialect, _ Trail) (bson.D, error) {
	values, err := r.enumValues(p.Enums)
	if err != nil {
		return nil, err
	}
	items := bson.D{{Key: d.TypeKey(), Value: "string"}, {Key: "enum", Value: values}}
	return append(p.header(d, TypeArray), bson.E{Key: "items", Value: items}), nil
}

// RefProperty renders the root of another dictionary in place.
type RefProperty struct {
	Base
	Ref string
}

func newRef(base Base, doc bson.D) (Property, error) {
	return &RefProperty{Base: base, Ref: document.String(doc, "ref", "")}, nil
}

func (p *RefProperty) ToDocument() bson.D {
	return append(p.toDocument(), bson.E{Key: "ref", Value: p.Ref})
}

func (p *RefProperty) Schema(r *Renderer, d Dialect, trail Trail) (bson.D, error) {
	schema, err := r.resolveRef(p.Ref, p.name, d, trail)
	if err != nil {
		return nil, err
	}
	return p.describe(schema), nil
}

// OneOfProperty accepts any one of its alternatives.
type OneOfProperty struct {
	Base
	Properties []Property
}

func newOneOf(base Base, doc bson.D) (Property, error) {
	children, err := newChildren(doc, "properties")
	if err != nil {
		return nil, err
	}
	return &OneOfProperty{Base: base, Properties: children}, nil
}

func (p *OneOfProperty) ToDocument() bson.D {
	children := make(bson.A, len(p.Properties))
	for i, child := range p.Properties {
		children[i] = child.ToDocument()
	}
	return append(p.toDocument(), bson.E{Key: "properties", Value: children})
}

func (p *OneOfProperty) Schema(r *Renderer, d Dialect, trail Trail) (bson.D, error) {
	alternatives := make(bson.A, 0, len(p.Properties))
	for _, child := range p.Properties {
		rendered, err := child.Schema(r, d, trail)
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, rendered)
	}
	return bson.D{
		{Key: "description", Value: p.description},
		{Key: d.TypeKey(), Value: p.typ},
		{Key: "oneOf", Value: alternatives},
	}, nil
}

// SimpleProperty merges one raw fragment into both dialects.
type SimpleProperty struct {
	Base
	Fragment bson.D
}

func newSimple(base Base, doc bson.D) (Property, error) {
	fragment, _ := document.Doc(doc, "schema")
	return &SimpleProperty{Base: base, Fragment: document.CloneDoc(fragment)}, nil
}

func (p *SimpleProperty) ToDocument() bson.D {
	return append(p.toDocument(), bson.E{Key: "schema", Value: document.CloneDoc(p.Fragment)})
}

func (p *SimpleProperty) Schema(_ *Renderer, d Dialect, _ Trail) (bson.D, error) {
	schema := document.Merge(bson.D{{Key: "description", Value: p.description}}, p.Fragment)
	if d == BSON {
		schema = document.Rename(schema, "type", "bsonType")
	}
	return schema, nil
}

// ComplexProperty carries a separate fragment per dialect.
type ComplexProperty struct {
	Base
	JSONFragment bson.D
	BSONFragment bson.D
}

func newComplex(base Base, doc bson.D) (Property, error) {
	jsonFragment := fragmentOf(doc, "json_type", "json_schema")
	bsonFragment := fragmentOf(doc, "bson_type", "bson_schema")
	return &ComplexProperty{
		Base:         base,
		JSONFragment: document.CloneDoc(jsonFragment),
		BSONFragment: document.CloneDoc(bsonFragment),
	}, nil
}

func (p *ComplexProperty) ToDocument() bson.D {
	return append(p.toDocument(),
		bson.E{Key: "json_type", Value: document.CloneDoc(p.JSONFragment)},
		bson.E{Key: "bson_type", Value: document.CloneDoc(p.BSONFragment)},
	)
}

func (p *ComplexProperty) Schema(_ *Renderer, d Dialect, _ Trail) (bson.D, error) {
	fragment := p.JSONFragment
	if d == BSON {
		fragment = p.BSONFragment
	}
	return document.Merge(bson.D{{Key: "description", Value: p.description}}, fragment), nil
}

func fragmentOf(doc bson.D, keys ...string) bson.D {
	for _, key := range keys {
		if fragment, ok := document.Doc(doc, key); ok {
			return fragment
		}
	}
	return nil
}

// ConstantProperty is a string fixed to one value.
type ConstantProperty struct {
	Base
	Constant any
}

func newConstant(base Base, doc bson.D) (Property, error) {
	value, _ := document.Get(doc, "constant")
	return &ConstantProperty{Base: base, Constant: value}, nil
}

func (p *ConstantProperty) ToDocument() bson.D {
	return append(p.toDocument(), bson.E{Key: "constant", Value: p.Constant})
}

func (p *ConstantProperty) Schema(_ *Renderer, d Dialect, _ Trail) (bson.D, error) {
	return append(p.header(d, "string"), bson.E{Key: "const", Value: p.Constant}), nil
}

// CustomProperty names a type from the type catalog.
type CustomProperty struct {
	Base
}

func newCustom(base Base, _ bson.D) (Property, error) {
	return &CustomProperty{Base: base}, nil
}

func (p *CustomProperty) ToDocument() bson.D {
	return p.toDocument()
}

func (p *CustomProperty) Schema(r *Renderer, d Dialect, trail Trail) (bson.D, error) {
	schema, err := r.resolveType(p.typ, d, trail)
	if err != nil {
		return nil, err
	}
	return p.describe(schema), nil
}

// describe lets the property's own description win over the resolved one.
func (b Base) describe(schema bson.D) bson.D {
	if b.description == "" {
		return schema
	}
	if document.Has(schema, "description") {
		return document.Set(document.CloneDoc(schema), "description", b.description)
	}
	return append(bson.D{{Key: "description", Value: b.description}}, schema...)
}
