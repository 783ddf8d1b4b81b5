package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/schema/registry"
)

// Type discriminators of the property DSL. Any other value names a custom type.
const (
	TypeObject    = "object"
	TypeArray     = "array"
	TypeEnum      = "enum"
	TypeEnumArray = "enum_array"
	TypeRef       = "ref"
	TypeOneOf     = "one_of"
	TypeSimple    = "simple"
	TypeComplex   = "complex"
	TypeConstant  = "constant"

	typeVoid = "void"
)

// Property is one node of a dictionary tree.
type Property interface {
	Name() string
	Description() string
	Type() string
	Required() bool

	// ToDocument renders the node back to its DSL form.
	ToDocument() bson.D
	// Schema renders the node in the given dialect.
	Schema(r *Renderer, d Dialect, trail Trail) (bson.D, error)
}

type factory func(base Base, doc bson.D) (Property, error)

var factories = registry.New[factory]()

func init() {
	factories.MustRegister(TypeObject, newObject)
	factories.MustRegister(TypeArray, newArray)
	factories.MustRegister(TypeEnum, newEnum)
	factories.MustRegister(TypeEnumArray, newEnumArray)
	factories.MustRegister(TypeRef, newRef)
	factories.MustRegister(TypeOneOf, newOneOf)
	factories.MustRegister(TypeSimple, newSimple)
	factories.MustRegister(TypeComplex, newComplex)
	factories.MustRegister(TypeConstant, newConstant)
	factories.Fallback(newCustom)
}

// NewProperty builds the node selected by the "type" discriminator of doc.
// Unknown discriminators produce a CustomProperty resolved at render time.
func NewProperty(doc bson.D) (Property, error) {
	name, ok := document.Get(doc, "name")
	if !ok {
		event := events.New("TYP-01", "MISSING_NAME")
		return nil, events.Fail(event, events.KindValidation, "missing required name",
			map[string]any{"document": doc})
	}
	nameStr, _ := name.(string)
	if nameStr == "" {
		event := events.New("TYP-01", "MISSING_NAME")
		return nil, events.Fail(event, events.KindValidation, "property name must be a non-empty string",
			map[string]any{"document": doc})
	}

	base := Base{
		name:        nameStr,
		description: document.String(doc, "description", ""),
		typ:         document.String(doc, "type", typeVoid),
		required:    document.Bool(doc, "required", false),
	}
	build, _ := factories.Lookup(base.typ)
	return build(base, doc)
}

func newChild(value any, defaultName string) (Property, error) {
	doc, ok := value.(bson.D)
	if !ok {
		event := events.New("TYP-02", "INVALID_PROPERTY")
		return nil, events.Fail(event, events.KindValidation, "property definition must be a mapping",
			map[string]any{"value": value})
	}
	if defaultName != "" && !document.Has(doc, "name") {
		doc = append(bson.D{{Key: "name", Value: defaultName}}, doc...)
	}
	return NewProperty(doc)
}

func newChildren(doc bson.D, key string) ([]Property, error) {
	items, _ := document.Array(doc, key)
	children := make([]Property, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		child, err := newChild(item, "")
		if err != nil {
			return nil, err
		}
		if _, dup := seen[child.Name()]; dup {
			event := events.New("TYP-03", "DUPLICATE_PROPERTY")
			return nil, events.Fail(event, events.KindValidation, "duplicate property name "+child.Name(),
				map[string]any{"name": child.Name()})
		}
		seen[child.Name()] = struct{}{}
		children = append(children, child)
	}
	return children, nil
}

// Base carries the fields shared by every variant.
type Base struct {
	name        string
	description string
	typ         string
	required    bool
}

func (b Base) Name() string        { return b.name }
func (b Base) Description() string { return b.description }
func (b Base) Type() string        { return b.typ }
func (b Base) Required() bool      { return b.required }

func (b Base) toDocument() bson.D {
	return bson.D{
		{Key: "name", Value: b.name},
		{Key: "description", Value: b.description},
		{Key: "type", Value: b.typ},
		{Key: "required", Value: b.required},
	}
}

// header starts a rendered schema with the description and the discriminator.
func (b Base) header(d Dialect, typ string) bson.D {
	return bson.D{
		{Key: "description", Value: b.description},
		{Key: d.TypeKey(), Value: typ},
	}
}
