package configurator

import (
	"context"
	"fmt"
	"path"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/observability/metrics"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
	"github.com/zeusync/configurator/internal/core/version"
	"github.com/zeusync/configurator/internal/mongoio"
)

var validate = validator.New()

// IndexKey is one field of an index.
type IndexKey struct {
	Field     string `validate:"required"`
	Direction int    `validate:"oneof=1 -1"`
}

// IndexSpec is an index created by a version.
type IndexSpec struct {
	Name string     `validate:"required"`
	Key  []IndexKey `validate:"required,min=1,dive"`
}

// parseIndexSpec accepts key as a list of {field, direction} or as a
// {field: direction} mapping.
func parseIndexSpec(raw any) (IndexSpec, error) {
	doc, ok := raw.(bson.D)
	if !ok {
		return IndexSpec{}, fmt.Errorf("index must be a mapping")
	}
	spec := IndexSpec{Name: document.String(doc, "name", "")}
	rawKey, _ := document.Get(doc, "key")
	switch key := rawKey.(type) {
	case bson.D:
		for _, e := range key {
			dir, _ := document.ToInt(e.Value)
			spec.Key = append(spec.Key, IndexKey{Field: e.Key, Direction: dir})
		}
	default:
		items, _ := document.AsArray(key)
		for _, item := range items {
			entry, ok := item.(bson.D)
			if !ok {
				return IndexSpec{}, fmt.Errorf("index key of %s must be a mapping", spec.Name)
			}
			spec.Key = append(spec.Key, IndexKey{
				Field:     document.String(entry, "field", ""),
				Direction: document.Int(entry, "direction", 0),
			})
		}
	}
	if err := validate.Struct(spec); err != nil {
		return IndexSpec{}, err
	}
	return spec, nil
}

// Keys is the driver form of the index key.
func (s IndexSpec) Keys() bson.D {
	keys := make(bson.D, len(s.Key))
	for i, k := range s.Key {
		keys[i] = bson.E{Key: k.Field, Value: k.Direction}
	}
	return keys
}

func (s IndexSpec) toDocument() bson.D {
	keys := make(bson.A, len(s.Key))
	for i, k := range s.Key {
		keys[i] = bson.D{{Key: "field", Value: k.Field}, {Key: "direction", Value: k.Direction}}
	}
	return bson.D{{Key: "name", Value: s.Name}, {Key: "key", Value: keys}}
}

// Version is one declared step of a collection.
type Version struct {
	Number      version.Number
	DropIndexes []string
	AddIndexes  []IndexSpec
	Migrations  []string
	TestData    string
	Locked      bool
}

// NewVersion builds a version of collection from {version, drop_indexes,
// add_indexes, migrations, test_data, _locked}.
func NewVersion(collection string, doc bson.D) (*Version, error) {
	event := events.New("CFG-01", "CREATE_VERSION").Set("collection", collection)
	number, err := version.Parse(collection + "." + document.String(doc, "version", ""))
	if err != nil {
		return nil, events.Wrap(event, err, "invalid version of "+collection)
	}

	v := &Version{
		Number:      number,
		DropIndexes: document.Strings(doc, "drop_indexes"),
		Migrations:  document.Strings(doc, "migrations"),
		TestData:    document.String(doc, "test_data", ""),
		Locked:      document.Bool(doc, "_locked", false),
	}
	indexes, _ := document.Array(doc, "add_indexes")
	for _, raw := range indexes {
		spec, err := parseIndexSpec(raw)
		if err != nil {
			return nil, events.Fail(event, events.KindValidation,
				"invalid index in version "+number.Full()+": "+err.Error(), nil)
		}
		v.AddIndexes = append(v.AddIndexes, spec)
	}
	return v, nil
}

func (v *Version) Collection() string {
	return v.Number.Collection
}

func (v *Version) ToDocument() bson.D {
	indexes := make(bson.A, len(v.AddIndexes))
	for i, spec := range v.AddIndexes {
		indexes[i] = spec.toDocument()
	}
	var testData any
	if v.TestData != "" {
		testData = v.TestData
	}
	return bson.D{
		{Key: "version", Value: v.Number.String()},
		{Key: "drop_indexes", Value: stringArray(v.DropIndexes)},
		{Key: "add_indexes", Value: indexes},
		{Key: "migrations", Value: stringArray(v.Migrations)},
		{Key: "test_data", Value: testData},
		{Key: "_locked", Value: v.Locked},
	}
}

func stringArray(items []string) bson.A {
	out := make(bson.A, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// BSONSchema renders the dictionary of this version.
func (v *Version) BSONSchema(catalog *schema.Catalog, enums *schema.EnumerationSet) (bson.D, error) {
	dict, err := catalog.Dictionary(v.Number.SchemaFileName())
	if err != nil {
		return nil, err
	}
	return dict.BSONSchema(catalog.Renderer(enums))
}

// JSONSchema renders the dictionary of this version.
func (v *Version) JSONSchema(catalog *schema.Catalog, enums *schema.EnumerationSet) (bson.D, error) {
	dict, err := catalog.Dictionary(v.Number.SchemaFileName())
	if err != nil {
		return nil, err
	}
	return dict.JSONSchema(catalog.Renderer(enums))
}

// Runner carries what processing a version needs.
type Runner struct {
	DB           mongoio.Database
	Store        interfaces.Store
	Catalog      *schema.Catalog
	Enumerators  *schema.Enumerators
	Pointers     *VersionManager
	Migrations   string
	TestData     string
	LoadTestData bool
	Metrics      metrics.Recorder
	Logger       log.Log
}

// Process applies the version unless the collection is already at or past
// it. Steps run in a fixed order and the first failure aborts the rest; the
// version pointer is only moved once everything else succeeded.
func (v *Version) Process(ctx context.Context, r *Runner) (*events.Event, error) {
	collection := v.Collection()
	event := events.New(v.Number.Full(), "PROCESS")
	logger := r.Logger.With(log.String("collection", collection), log.String("version", v.Number.String()))

	current, err := r.Pointers.Current(ctx, collection)
	if err != nil {
		return event, v.abort(r, event, err)
	}
	if current.AtLeast(v.Number) {
		event.Set("skip_reason", "Version already implemented").
			Set("current_version", current.String()).
			Set("target_version", v.Number.String())
		event.Succeed()
		r.Metrics.Version(collection, metrics.OutcomeSkipped)
		logger.Info("Version already implemented", log.String("current_version", current.String()))
		return event, nil
	}
	logger.Info("Processing version")

	steps := []struct {
		id, typ string
		skip    bool
		run     func(*events.Event) error
	}{
		{"PRO-01", "REMOVE_SCHEMA_VALIDATION", false, func(sub *events.Event) error {
			return record(sub, func() (*events.Event, error) { return r.DB.RemoveSchemaValidation(ctx, collection) })
		}},
		{"PRO-02", "REMOVE_INDEXES", len(v.DropIndexes) == 0, func(sub *events.Event) error {
			for _, index := range v.DropIndexes {
				if err := record(sub, func() (*events.Event, error) { return r.DB.RemoveIndex(ctx, collection, index) }); err != nil {
					return err
				}
			}
			return nil
		}},
		{"PRO-03", "EXECUTE_MIGRATIONS", len(v.Migrations) == 0, func(sub *events.Event) error {
			for _, file := range v.Migrations {
				if err := v.migrate(ctx, r, sub, file); err != nil {
					return err
				}
			}
			return nil
		}},
		{"PRO-04", "ADD_INDEXES", len(v.AddIndexes) == 0, func(sub *events.Event) error {
			for _, spec := range v.AddIndexes {
				if err := record(sub, func() (*events.Event, error) {
					return r.DB.AddIndex(ctx, collection, spec.Name, spec.Keys())
				}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"PRO-06", "APPLY_SCHEMA_VALIDATION", false, func(sub *events.Event) error {
			return v.applySchema(ctx, r, sub)
		}},
		{"PRO-07", "LOAD_TEST_DATA", v.TestData == "" || !r.LoadTestData, func(sub *events.Event) error {
			return v.loadTestData(ctx, r, sub)
		}},
		{"PRO-08", "UPDATE_VERSION", false, func(sub *events.Event) error {
			pointer, err := r.Pointers.Update(ctx, v.Number)
			if err != nil {
				return err
			}
			current, _ := document.Get(pointer, "current_version")
			sub.Set("collection_name", collection).Set("current_version", current)
			return nil
		}},
	}

	for _, step := range steps {
		if step.skip {
			continue
		}
		sub := event.Child(step.id, step.typ)
		if err := step.run(sub); err != nil {
			return event, v.abort(r, event, events.Wrap(sub, err, step.typ+" failed"))
		}
		sub.Succeed()
	}

	event.Succeed()
	r.Metrics.Version(collection, metrics.OutcomeApplied)
	logger.Info("Version processed")
	return event, nil
}

func (v *Version) abort(r *Runner, event *events.Event, err error) error {
	r.Metrics.Version(v.Collection(), metrics.OutcomeFailed)
	r.Logger.Error("Version processing failed", log.String("version", v.Number.Full()), log.Error(err))
	return events.Wrap(event, err, "cannot process version "+v.Number.Full())
}

// record runs one database operation and attaches its event to sub.
func record(sub *events.Event, op func() (*events.Event, error)) error {
	event, err := op()
	sub.Append(event)
	return err
}

// migrate loads one pipeline file and executes it. A failing file fails the
// whole step.
func (v *Version) migrate(ctx context.Context, r *Runner, sub *events.Event, file string) error {
	fileEvent := sub.Child("MON-14", "EXECUTE_MIGRATION_FILE").
		Set("collection", v.Collection()).
		Set("migration_file", file)

	load := fileEvent.Child("MON-13", "LOAD_MIGRATION")
	raw, err := r.Store.GetValue(r.Migrations, file)
	if err != nil {
		return events.Wrap(fileEvent, events.Wrap(load, err, "failed to load migration pipeline from "+file), "migration "+file+" failed")
	}
	pipeline, ok := document.AsArray(raw)
	if !ok {
		return events.Wrap(fileEvent, events.Fail(load, events.KindValidation,
			"migration "+file+" must be an array of pipeline stages", nil), "migration "+file+" failed")
	}
	load.Set("stages", len(pipeline))
	load.Succeed()

	if err := record(fileEvent, func() (*events.Event, error) {
		return r.DB.ExecuteMigration(ctx, v.Collection(), pipeline)
	}); err != nil {
		return events.Wrap(fileEvent, err, "migration "+file+" failed")
	}
	fileEvent.Succeed()
	return nil
}

func (v *Version) applySchema(ctx context.Context, r *Runner, sub *events.Event) error {
	enums, err := r.Enumerators.ForVersion(v.Number.EnumeratorVersion())
	if err != nil {
		return err
	}
	rendered, err := v.BSONSchema(r.Catalog, enums)
	if err != nil {
		return err
	}
	checksum, err := schemaChecksum(rendered)
	if err != nil {
		return fmt.Errorf("cannot encode schema of %s: %w", v.Collection(), err)
	}
	sub.Set("schema_checksum", checksum)
	return record(sub, func() (*events.Event, error) {
		return r.DB.ApplySchemaValidation(ctx, v.Collection(), rendered)
	})
}

// schemaChecksum fingerprints the rendered validator so runs can be compared.
func schemaChecksum(rendered bson.D) (string, error) {
	encoded, err := document.ToJSON(rendered)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(encoded)), nil
}

func (v *Version) loadTestData(ctx context.Context, r *Runner, sub *events.Event) error {
	sub.Set("test_data_path", path.Join(r.TestData, v.TestData))
	raw, err := r.Store.GetValue(r.TestData, v.TestData)
	if err != nil {
		return err
	}
	documents, ok := document.AsArray(raw)
	if !ok {
		return events.Fail(sub, events.KindValidation, "test data "+v.TestData+" must be an array of documents", nil)
	}
	return record(sub, func() (*events.Event, error) {
		return r.DB.LoadJSONData(ctx, v.Collection(), v.TestData, documents)
	})
}
