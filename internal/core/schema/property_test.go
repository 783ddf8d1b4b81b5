package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
)

func colorEnums(t *testing.T) *EnumerationSet {
	t.Helper()
	set, err := NewEnumerationSet("enumerations.1.yaml", bson.D{
		{Key: "version", Value: 1},
		{Key: "enumerators", Value: bson.A{
			bson.D{
				{Key: "name", Value: "color"},
				{Key: "values", Value: bson.A{
					bson.D{{Key: "value", Value: "red"}, {Key: "description", Value: "Red"}},
					bson.D{{Key: "value", Value: "blue"}, {Key: "description", Value: "Blue"}},
					bson.D{{Key: "value", Value: "red"}, {Key: "description", Value: "Again"}},
				}},
			},
		}},
	})
	require.NoError(t, err)
	return set
}

func mustProperty(t *testing.T, doc bson.D) Property {
	t.Helper()
	p, err := NewProperty(doc)
	require.NoError(t, err)
	return p
}

func sampleDocuments() map[string]bson.D {
	str := bson.D{{Key: "type", Value: "string"}, {Key: "maxLength", Value: 40}}
	return map[string]bson.D{
		TypeObject: {
			{Key: "name", Value: "root"}, {Key: "description", Value: "A user"}, {Key: "type", Value: TypeObject},
			{Key: "additionalProperties", Value: true},
			{Key: "properties", Value: bson.A{
				bson.D{{Key: "name", Value: "first"}, {Key: "type", Value: TypeSimple}, {Key: "required", Value: true}, {Key: "schema", Value: str}},
				bson.D{{Key: "name", Value: "email"}, {Key: "type", Value: "email"}},
			}},
		},
		TypeArray: {
			{Key: "name", Value: "tags"}, {Key: "type", Value: TypeArray},
			{Key: "items", Value: bson.D{{Key: "type", Value: TypeSimple}, {Key: "schema", Value: str}}},
		},
		TypeEnum:      {{Key: "name", Value: "status"}, {Key: "type", Value: TypeEnum}, {Key: "enums", Value: "color"}},
		TypeEnumArray: {{Key: "name", Value: "colors"}, {Key: "type", Value: TypeEnumArray}, {Key: "enum", Value: "color"}},
		TypeRef:       {{Key: "name", Value: "address"}, {Key: "type", Value: TypeRef}, {Key: "ref", Value: "address.1.0.0"}},
		TypeOneOf: {
			{Key: "name", Value: "contact"}, {Key: "type", Value: TypeOneOf},
			{Key: "properties", Value: bson.A{
				bson.D{{Key: "name", Value: "phone"}, {Key: "type", Value: "phone"}},
				bson.D{{Key: "name", Value: "mail"}, {Key: "type", Value: "email"}},
			}},
		},
		TypeSimple: {{Key: "name", Value: "nick"}, {Key: "type", Value: TypeSimple}, {Key: "schema", Value: str}},
		TypeComplex: {
			{Key: "name", Value: "created"}, {Key: "type", Value: TypeComplex},
			{Key: "json_type", Value: bson.D{{Key: "type", Value: "string"}, {Key: "format", Value: "date-time"}}},
			{Key: "bson_type", Value: bson.D{{Key: "bsonType", Value: "date"}}},
		},
		TypeConstant: {{Key: "name", Value: "kind"}, {Key: "type", Value: TypeConstant}, {Key: "constant", Value: "user"}},
		"word":       {{Key: "name", Value: "title"}, {Key: "type", Value: "word"}, {Key: "required", Value: true}},
	}
}

func TestNewPropertySelectsVariant(t *testing.T) {
	expected := map[string]Property{
		TypeObject:    &ObjectProperty{},
		TypeArray:     &ArrayProperty{},
		TypeEnum:      &EnumProperty{},
		TypeEnumArray: &EnumArrayProperty{},
		TypeRef:       &RefProperty{},
		TypeOneOf:     &OneOfProperty{},
		TypeSimple:    &SimpleProperty{},
		TypeComplex:   &ComplexProperty{},
		TypeConstant:  &ConstantProperty{},
		"word":        &CustomProperty{},
	}
	for typ, doc := range sampleDocuments() {
		p := mustProperty(t, doc)
		assert.IsType(t, expected[typ], p, typ)
	}
}

func TestNewPropertyMissingName(t *testing.T) {
	for typ, doc := range sampleDocuments() {
		_, err := NewProperty(document.Delete(document.CloneDoc(doc), "name"))
		require.Error(t, err, typ)
		assert.True(t, errors.Is(err, events.ErrValidation), typ)
		assert.Equal(t, "MISSING_NAME", events.Capture(err).Type, typ)
	}
}

func TestNewPropertyNestedMissingName(t *testing.T) {
	_, err := NewProperty(bson.D{
		{Key: "name", Value: "root"}, {Key: "type", Value: TypeObject},
		{Key: "properties", Value: bson.A{bson.D{{Key: "type", Value: "word"}}}},
	})
	require.Error(t, err)
	assert.Equal(t, "MISSING_NAME", events.Capture(err).Type)
}

func TestNewPropertyDuplicateChild(t *testing.T) {
	_, err := NewProperty(bson.D{
		{Key: "name", Value: "root"}, {Key: "type", Value: TypeObject},
		{Key: "properties", Value: bson.A{
			bson.D{{Key: "name", Value: "a"}, {Key: "type", Value: "word"}},
			bson.D{{Key: "name", Value: "a"}, {Key: "type", Value: "word"}},
		}},
	})
	assert.True(t, errors.Is(err, events.ErrValidation))
}

func TestPropertyDocumentRoundTrip(t *testing.T) {
	for typ, doc := range sampleDocuments() {
		first := mustProperty(t, doc)
		second := mustProperty(t, first.ToDocument())

		assert.Equal(t, first, second, typ)
		assert.Equal(t, first.ToDocument(), second.ToDocument(), typ)
		assert.Equal(t, document.String(doc, "name", ""), second.Name(), typ)
	}
}

func TestEnumRendering(t *testing.T) {
	r := NewRenderer(nil, colorEnums(t), 0)
	p := mustProperty(t, bson.D{{Key: "name", Value: "c"}, {Key: "type", Value: TypeEnum}, {Key: "enums", Value: "color"}})

	js, err := r.Render(p, JSON)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "description", Value: ""},
		{Key: "type", Value: "string"},
		{Key: "enum", Value: bson.A{"red", "blue"}},
	}, js)

	bs, err := r.Render(p, BSON)
	require.NoError(t, err)
	assert.Equal(t, "string", document.String(bs, "bsonType", ""))
	assert.False(t, document.Has(bs, "type"))
	values, _ := document.Array(bs, "enum")
	assert.Equal(t, bson.A{"red", "blue"}, values)
}

func TestEnumArrayRendering(t *testing.T) {
	r := NewRenderer(nil, colorEnums(t), 0)
	p := mustProperty(t, sampleDocuments()[TypeEnumArray])

	bs, err := r.Render(p, BSON)
	require.NoError(t, err)
	assert.Equal(t, "array", document.String(bs, "bsonType", ""))
	items, ok := document.Doc(bs, "items")
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "bsonType", Value: "string"}, {Key: "enum", Value: bson.A{"red", "blue"}}}, items)
}

func TestEnumNotFound(t *testing.T) {
	r := NewRenderer(nil, colorEnums(t), 0)
	p := mustProperty(t, bson.D{{Key: "name", Value: "s"}, {Key: "type", Value: TypeEnum}, {Key: "enums", Value: "size"}})

	_, err := r.Render(p, JSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrNotFound))

	_, err = NewRenderer(nil, nil, 0).Render(p, JSON)
	assert.True(t, errors.Is(err, events.ErrNotFound))
}

func TestObjectRequired(t *testing.T) {
	str := bson.D{{Key: "type", Value: "string"}}
	p := mustProperty(t, bson.D{
		{Key: "name", Value: "root"}, {Key: "type", Value: TypeObject},
		{Key: "properties", Value: bson.A{
			bson.D{{Key: "name", Value: "a"}, {Key: "type", Value: TypeSimple}, {Key: "required", Value: true}, {Key: "schema", Value: str}},
			bson.D{{Key: "name", Value: "b"}, {Key: "type", Value: TypeSimple}, {Key: "required", Value: false}, {Key: "schema", Value: str}},
		}},
	})

	for _, d := range []Dialect{JSON, BSON} {
		schema, err := NewRenderer(nil, nil, 0).Render(p, d)
		require.NoError(t, err)
		required, ok := document.Array(schema, "required")
		require.True(t, ok)
		assert.Equal(t, bson.A{"a"}, required)

		props, ok := document.Doc(schema, "properties")
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, document.Keys(props))
	}
}

func TestObjectWithoutRequiredOmitsKey(t *testing.T) {
	p := mustProperty(t, bson.D{
		{Key: "name", Value: "root"}, {Key: "type", Value: TypeObject},
		{Key: "properties", Value: bson.A{
			bson.D{{Key: "name", Value: "b"}, {Key: "type", Value: TypeConstant}, {Key: "constant", Value: "x"}},
		}},
	})
	schema, err := NewRenderer(nil, nil, 0).Render(p, JSON)
	require.NoError(t, err)
	assert.False(t, document.Has(schema, "required"))
}

func TestSimpleAndComplexRendering(t *testing.T) {
	r := NewRenderer(nil, nil, 0)
	docs := sampleDocuments()

	simple := mustProperty(t, docs[TypeSimple])
	js, err := r.Render(simple, JSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "type", "maxLength"}, document.Keys(js))
	bs, err := r.Render(simple, BSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "bsonType", "maxLength"}, document.Keys(bs))

	complexProp := mustProperty(t, docs[TypeComplex])
	js, err = r.Render(complexProp, JSON)
	require.NoError(t, err)
	assert.Equal(t, "date-time", document.String(js, "format", ""))
	bs, err = r.Render(complexProp, BSON)
	require.NoError(t, err)
	assert.Equal(t, "date", document.String(bs, "bsonType", ""))
	assert.False(t, document.Has(bs, "format"))
}

func TestConstantAndOneOfRendering(t *testing.T) {
	r := NewRenderer(nil, nil, 0)
	constant := mustProperty(t, sampleDocuments()[TypeConstant])

	bs, err := r.Render(constant, BSON)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "description", Value: ""},
		{Key: "bsonType", Value: "string"},
		{Key: "const", Value: "user"},
	}, bs)

	oneOf := mustProperty(t, bson.D{
		{Key: "name", Value: "v"}, {Key: "type", Value: TypeOneOf},
		{Key: "properties", Value: bson.A{
			bson.D{{Key: "name", Value: "x"}, {Key: "type", Value: TypeConstant}, {Key: "constant", Value: "x"}},
			bson.D{{Key: "name", Value: "y"}, {Key: "type", Value: TypeConstant}, {Key: "constant", Value: "y"}},
		}},
	})
	js, err := r.Render(oneOf, JSON)
	require.NoError(t, err)
	assert.Equal(t, TypeOneOf, document.String(js, "type", ""))
	alternatives, ok := document.Array(js, "oneOf")
	require.True(t, ok)
	assert.Len(t, alternatives, 2)

	bs, err = r.Render(oneOf, BSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "bsonType", "oneOf"}, document.Keys(bs))
	assert.Equal(t, TypeOneOf, document.String(bs, "bsonType", ""))
}
