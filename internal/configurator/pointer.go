package configurator

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/version"
	"github.com/zeusync/configurator/internal/mongoio"
)

// VersionManager reads and moves the per-collection version pointers stored
// as {collection_name, current_version: [major, minor, patch, enumerator]}.
type VersionManager struct {
	db         mongoio.Database
	collection string
}

func NewVersionManager(db mongoio.Database, collection string) *VersionManager {
	return &VersionManager{db: db, collection: collection}
}

// Current returns the applied version of collection, the zero version when
// the collection has never been processed.
func (m *VersionManager) Current(ctx context.Context, collection string) (version.Number, error) {
	event := events.New("VER-02", "GET_CURRENT_VERSION").Set("collection", collection)
	docs, err := m.db.GetDocuments(ctx, m.collection, bson.D{{Key: "collection_name", Value: collection}}, nil)
	if err != nil {
		return version.Number{}, events.Wrap(event, err, "failed to read version of "+collection)
	}
	switch len(docs) {
	case 0:
		return version.Zero(collection), nil
	case 1:
	default:
		return version.Number{}, events.Fail(event, events.KindDatabase,
			"multiple versions found for collection: "+collection, map[string]any{"count": len(docs)})
	}

	raw, _ := document.Get(docs[0], "current_version")
	if s, ok := raw.(string); ok {
		return version.Parse(collection + "." + s)
	}
	items, _ := document.AsArray(raw)
	parts := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := document.ToInt(item)
		if !ok {
			return version.Number{}, events.Fail(event, events.KindValidation,
				fmt.Sprintf("invalid version pointer %v for %s", raw, collection), nil)
		}
		parts = append(parts, n)
	}
	return version.FromParts(collection, parts)
}

// Update moves the pointer of n's collection to n and returns the stored pointer.
func (m *VersionManager) Update(ctx context.Context, n version.Number) (bson.D, error) {
	event := events.New("VER-03", "UPDATE_VERSION").Set("version", n.Full())
	parts := make(bson.A, 0, 4)
	for _, p := range n.Parts() {
		parts = append(parts, p)
	}
	doc, err := m.db.Upsert(ctx, m.collection,
		bson.D{{Key: "collection_name", Value: n.Collection}},
		bson.D{{Key: "collection_name", Value: n.Collection}, {Key: "current_version", Value: parts}})
	if err != nil {
		return nil, events.Wrap(event, err, "failed to update version of "+n.Collection)
	}
	return doc, nil
}
