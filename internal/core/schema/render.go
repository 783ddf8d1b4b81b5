package schema

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/storage"
)

// DefaultMaxDepth bounds reference chains when no limit is configured.
const DefaultMaxDepth = 100

// Dialect selects the rendered schema flavour.
type Dialect uint8

const (
	JSON Dialect = iota
	BSON
)

// TypeKey is the discriminator key of the dialect.
func (d Dialect) TypeKey() string {
	if d == BSON {
		return "bsonType"
	}
	return "type"
}

func (d Dialect) String() string {
	if d == BSON {
		return "bson"
	}
	return "json"
}

// Trail is the reference chain of one render. Pushing always copies, so
// sibling and concurrent renders never see each other's entries.
type Trail struct {
	refs  []string
	types []string
}

func (t Trail) Refs() []string  { return append([]string(nil), t.refs...) }
func (t Trail) Types() []string { return append([]string(nil), t.types...) }

func push(stack []string, name string) []string {
	out := make([]string, len(stack)+1)
	copy(out, stack)
	out[len(stack)] = name
	return out
}

func contains(stack []string, name string) bool {
	for _, s := range stack {
		if s == name {
			return true
		}
	}
	return false
}

// Resolver loads the documents referenced while rendering.
type Resolver interface {
	Dictionary(name string) (*Dictionary, error)
	Type(name string) (*Type, error)
}

// Renderer renders property trees against one enumeration set.
type Renderer struct {
	resolver Resolver
	enums    *EnumerationSet
	maxDepth int
}

// NewRenderer builds a renderer. enums may be nil when no enum properties are
// rendered; a non-positive maxDepth selects DefaultMaxDepth.
func NewRenderer(resolver Resolver, enums *EnumerationSet, maxDepth int) *Renderer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Renderer{resolver: resolver, enums: enums, maxDepth: maxDepth}
}

// Render renders p starting from an empty trail.
func (r *Renderer) Render(p Property, d Dialect) (bson.D, error) {
	return p.Schema(r, d, Trail{})
}

func (r *Renderer) enumValues(name string) (bson.A, error) {
	if r.enums == nil {
		event := events.New("ENU-02", "GET_ENUM_VALUES")
		return nil, events.Fail(event, events.KindNotFound, "enumeration "+name+" not found",
			map[string]any{"enum": name})
	}
	return r.enums.GetEnumValues(name)
}

func (r *Renderer) resolveType(typeName string, d Dialect, trail Trail) (bson.D, error) {
	file := storage.WithExtension(typeName, storage.ExtYAML)
	if contains(trail.types, file) {
		chain := strings.Join(push(trail.types, file), " -> ")
		event := events.New("TYP-07", "CIRCULAR_TYPE_REFERENCE")
		return nil, events.Fail(event, events.KindCircularReference, "circular type reference detected: "+chain,
			map[string]any{"type_chain": chain, "type_stack": trail.Types()})
	}
	if len(trail.types) >= r.maxDepth {
		event := events.New("TYP-08", "TYPE_STACK_DEPTH_EXCEEDED")
		return nil, events.Fail(event, events.KindDepthExceeded,
			fmt.Sprintf("type stack depth exceeded maximum of %d", r.maxDepth),
			map[string]any{"max_depth": r.maxDepth, "current_depth": len(trail.types)})
	}

	next := Trail{refs: trail.refs, types: push(trail.types, file)}
	event := events.New("TYP-04", "RESOLVE_TYPE").Set("type", file)
	t, err := r.resolver.Type(file)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to load type "+file)
	}
	schema, err := t.Root.Render(r, d, next)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to render type "+file)
	}
	return schema, nil
}

func (r *Renderer) resolveRef(ref, propertyName string, d Dialect, trail Trail) (bson.D, error) {
	file := storage.WithExtension(ref, storage.ExtYAML)
	if contains(trail.refs, file) {
		chain := strings.Join(push(trail.refs, file), " -> ")
		event := events.New("REF-07", "CIRCULAR_REF_REFERENCE")
		return nil, events.Fail(event, events.KindCircularReference, "circular reference detected: "+chain,
			map[string]any{"ref_chain": chain, "ref_stack": trail.Refs(), "property_name": propertyName})
	}
	if len(trail.refs) >= r.maxDepth {
		event := events.New("REF-08", "REF_STACK_DEPTH_EXCEEDED")
		return nil, events.Fail(event, events.KindDepthExceeded, "reference stack depth exceeded",
			map[string]any{"max_depth": r.maxDepth, "current_depth": len(trail.refs), "property_name": propertyName})
	}

	next := Trail{refs: push(trail.refs, file), types: trail.types}
	event := events.New("REF-01", "RESOLVE_REF").Set("ref", file).Set("property_name", propertyName)
	dict, err := r.resolver.Dictionary(file)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to load referenced dictionary "+file)
	}
	schema, err := dict.Root.Schema(r, d, next)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to render referenced dictionary "+file)
	}
	return schema, nil
}
