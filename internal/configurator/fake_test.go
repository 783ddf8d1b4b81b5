package configurator

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/mongoio"
)

// fakeDB records every mutation and keeps upserted documents per collection.
type fakeDB struct {
	docs         map[string][]bson.D
	calls        []string
	schemas      map[string]bson.D
	indexes      map[string][]string
	loaded       map[string]bson.A
	failOn       string
	disconnected bool
}

var _ mongoio.Database = (*fakeDB)(nil)

func newFakeDB() *fakeDB {
	return &fakeDB{
		docs:    map[string][]bson.D{},
		schemas: map[string]bson.D{},
		indexes: map[string][]string{},
		loaded:  map[string]bson.A{},
	}
}

func (f *fakeDB) mutate(op, id, typ string) (*events.Event, error) {
	f.calls = append(f.calls, op)
	event := events.New(id, typ)
	if op == f.failOn {
		return event, events.Fail(event, events.KindDatabase, op+" rejected", nil)
	}
	event.Succeed()
	return event, nil
}

func matches(doc, match bson.D) bool {
	for _, e := range match {
		if v, ok := document.Get(doc, e.Key); !ok || v != e.Value {
			return false
		}
	}
	return true
}

func (f *fakeDB) GetCollection(context.Context, string) (*mongo.Collection, error) {
	return nil, nil
}

func (f *fakeDB) GetDocuments(_ context.Context, collection string, match, _ bson.D) ([]bson.D, error) {
	var out []bson.D
	for _, doc := range f.docs[collection] {
		if matches(doc, match) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeDB) CountDocuments(_ context.Context, collection string, _ bson.D) (int64, error) {
	return int64(len(f.docs[collection])), nil
}

func (f *fakeDB) Upsert(_ context.Context, collection string, match, data bson.D) (bson.D, error) {
	if _, err := f.mutate("Upsert", "MON-05", "UPSERT"); err != nil {
		return nil, err
	}
	for i, doc := range f.docs[collection] {
		if matches(doc, match) {
			f.docs[collection][i] = document.Merge(document.CloneDoc(doc), data)
			return f.docs[collection][i], nil
		}
	}
	doc := document.CloneDoc(data)
	f.docs[collection] = append(f.docs[collection], doc)
	return doc, nil
}

func (f *fakeDB) RemoveSchemaValidation(_ context.Context, collection string) (*events.Event, error) {
	delete(f.schemas, collection)
	return f.mutate("RemoveSchemaValidation", "MON-06", "REMOVE_SCHEMA")
}

func (f *fakeDB) RemoveIndex(_ context.Context, _, index string) (*events.Event, error) {
	return f.mutate("RemoveIndex "+index, "MON-07", "REMOVE_INDEX")
}

func (f *fakeDB) AddIndex(_ context.Context, collection, index string, _ bson.D) (*events.Event, error) {
	f.indexes[collection] = append(f.indexes[collection], index)
	return f.mutate("AddIndex "+index, "MON-09", "ADD_INDEX")
}

func (f *fakeDB) ExecuteMigration(context.Context, string, bson.A) (*events.Event, error) {
	return f.mutate("ExecuteMigration", "MON-08", "EXECUTE_MIGRATION")
}

func (f *fakeDB) LoadJSONData(_ context.Context, collection, _ string, documents bson.A) (*events.Event, error) {
	f.loaded[collection] = documents
	return f.mutate("LoadJSONData", "MON-11", "LOAD_DATA")
}

func (f *fakeDB) ApplySchemaValidation(_ context.Context, collection string, schema bson.D) (*events.Event, error) {
	event, err := f.mutate("ApplySchemaValidation", "MON-10", "APPLY_SCHEMA")
	if err == nil {
		f.schemas[collection] = schema
		event.Set("schema", schema)
	}
	return event, err
}

func (f *fakeDB) DropDatabase(context.Context) (*events.Event, error) {
	return f.mutate("DropDatabase", "MON-12", "DROP_DATABASE")
}

func (f *fakeDB) Disconnect(context.Context) error {
	f.disconnected = true
	return nil
}
