package configurator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/config"
	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage"
	"github.com/zeusync/configurator/internal/mongoio"
)

const usersDictionary = `
root:
  name: root
  description: A user
  type: object
  properties:
    - name: name
      type: word
      required: true
    - name: status
      type: enum
      enums: status
`

func baseFiles() map[string]string {
	return map[string]string{
		"configurations/users.yaml": `
title: Users
description: User accounts
versions:
  - version: "0.0.1.0"
`,
		"dictionaries/users.0.0.1.yaml": usersDictionary,
		"types/word.yaml":               "root:\n  description: A word\n  schema:\n    type: string\n    maxLength: 40\n",
		"enumerators/enumerations.0.yaml": `
version: 0
enumerators:
  - name: status
    values:
      - value: active
        description: In use
      - value: archived
        description: Kept for history
`,
	}
}

func newTestService(t *testing.T, files map[string]string) (*Service, *fakeDB) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(strings.TrimLeft(content, "\n")), 0o644))
	}
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	store := storage.NewFileStore(dir)
	catalog := schema.NewCatalog(store, schema.Folders{
		Types:        cfg.TypeFolder,
		Dictionaries: cfg.DictionaryFolder,
		Enumerators:  cfg.EnumeratorFolder,
	}, cfg.RenderStackMaxDepth, log.NewNop())

	db := newFakeDB()
	dial := func(context.Context) (mongoio.Database, error) { return db, nil }
	return NewService(cfg, store, catalog, dial, nil, log.NewNop()), db
}

func TestProcessAllEndToEnd(t *testing.T) {
	svc, db := newTestService(t, baseFiles())

	event, err := svc.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events.StatusSuccess, event.Status)
	assert.True(t, db.disconnected)

	process := event.Find("PROCESS")
	require.NotNil(t, process)
	assert.Equal(t, "users.0.0.1.0", process.ID)
	assert.Equal(t, []string{"REMOVE_SCHEMA_VALIDATION", "APPLY_SCHEMA_VALIDATION", "UPDATE_VERSION"}, process.SubTypes())
	assert.NotEmpty(t, process.Find("APPLY_SCHEMA_VALIDATION").Data["schema_checksum"])

	expected, err := svc.BSONSchema("users.yaml", "0.0.1.0")
	require.NoError(t, err)
	assert.Equal(t, expected, db.schemas["users"])
	assert.Equal(t, expected, process.Find("APPLY_SCHEMA").Data["schema"])

	require.Len(t, db.docs["CollectionVersions"], 1)
	assert.Equal(t, bson.D{
		{Key: "collection_name", Value: "users"},
		{Key: "current_version", Value: bson.A{0, 0, 1, 0}},
	}, db.docs["CollectionVersions"][0])

	require.Len(t, db.docs["DatabaseEnumerators"], 1)
	assert.Equal(t, "UPSERT_ENUMERATORS_TO_DATABASE", event.SubEvents[0].Type)
}

func TestProcessIsIdempotent(t *testing.T) {
	svc, db := newTestService(t, baseFiles())
	ctx := context.Background()

	r, err := svc.runner(ctx, events.New("TEST", "TEST"), db)
	require.NoError(t, err)
	c, err := svc.Configuration("users.yaml")
	require.NoError(t, err)
	v := c.Versions[0]

	_, err = v.Process(ctx, r)
	require.NoError(t, err)
	db.calls = nil

	event, err := v.Process(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, events.StatusSuccess, event.Status)
	assert.Equal(t, "Version already implemented", event.Data["skip_reason"])
	assert.Equal(t, "0.0.1.0", event.Data["current_version"])
	assert.Equal(t, "0.0.1.0", event.Data["target_version"])
	assert.Empty(t, event.SubEvents)
	assert.Empty(t, db.calls)
}

func fullVersionFiles() map[string]string {
	files := baseFiles()
	files["configurations/users.yaml"] = `
versions:
  - version: "1.0.0.0"
    drop_indexes:
      - old_index
    migrations:
      - split_name.json
    add_indexes:
      - name: nameIndex
        key:
          - field: name
            direction: 1
    test_data: users.1.0.0.0.json
`
	files["dictionaries/users.1.0.0.yaml"] = usersDictionary
	files["migrations/split_name.json"] = `[{"$addFields": {"first": "$name"}}]`
	files["test_data/users.1.0.0.0.json"] = `[{"name": "ada", "status": "active"}]`
	files["LOAD_TEST_DATA"] = "true"
	return files
}

func TestProcessStepOrder(t *testing.T) {
	svc, db := newTestService(t, fullVersionFiles())

	event, err := svc.ProcessOne(context.Background(), "users.yaml")
	require.NoError(t, err)

	process := event.Find("PROCESS")
	assert.Equal(t, []string{
		"REMOVE_SCHEMA_VALIDATION",
		"REMOVE_INDEXES",
		"EXECUTE_MIGRATIONS",
		"ADD_INDEXES",
		"APPLY_SCHEMA_VALIDATION",
		"LOAD_TEST_DATA",
		"UPDATE_VERSION",
	}, process.SubTypes())
	assert.Equal(t, []string{
		"Upsert",
		"RemoveSchemaValidation",
		"RemoveIndex old_index",
		"ExecuteMigration",
		"AddIndex nameIndex",
		"ApplySchemaValidation",
		"LoadJSONData",
		"Upsert",
	}, db.calls)

	migration := process.Find("EXECUTE_MIGRATION_FILE")
	require.NotNil(t, migration)
	assert.Equal(t, "split_name.json", migration.Data["migration_file"])
	assert.Equal(t, []string{"LOAD_MIGRATION", "EXECUTE_MIGRATION"}, migration.SubTypes())

	require.Len(t, db.loaded["users"], 1)
	assert.Equal(t, "ada", document.String(db.loaded["users"][0].(bson.D), "name", ""))
}

func TestTestDataSkippedWhenDisabled(t *testing.T) {
	files := fullVersionFiles()
	delete(files, "LOAD_TEST_DATA")
	svc, db := newTestService(t, files)

	event, err := svc.ProcessOne(context.Background(), "users.yaml")
	require.NoError(t, err)
	assert.NotContains(t, event.Find("PROCESS").SubTypes(), "LOAD_TEST_DATA")
	assert.Empty(t, db.loaded)
}

func TestFailingStepAbortsVersion(t *testing.T) {
	svc, db := newTestService(t, fullVersionFiles())
	db.failOn = "ExecuteMigration"

	event, err := svc.ProcessOne(context.Background(), "users.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrDatabase))
	assert.Equal(t, events.StatusFailure, event.Status)

	process := event.Find("PROCESS")
	assert.Equal(t, events.StatusFailure, process.Status)
	assert.Equal(t, []string{"REMOVE_SCHEMA_VALIDATION", "REMOVE_INDEXES", "EXECUTE_MIGRATIONS"}, process.SubTypes())
	assert.Equal(t, events.StatusFailure, process.Find("EXECUTE_MIGRATIONS").Status)
	assert.Equal(t, events.StatusFailure, process.Find("EXECUTE_MIGRATION_FILE").Status)
	assert.Empty(t, db.docs["CollectionVersions"])
	assert.NotContains(t, db.calls, "AddIndex nameIndex")
}

func TestProcessAllIsolatesCollections(t *testing.T) {
	files := baseFiles()
	files["configurations/accounts.yaml"] = "versions:\n  - version: \"0.0.1.0\"\n"
	svc, db := newTestService(t, files)

	event, err := svc.ProcessAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrNotFound))
	assert.Equal(t, events.StatusFailure, event.Status)

	require.Len(t, db.docs["CollectionVersions"], 1)
	assert.Equal(t, "users", document.String(db.docs["CollectionVersions"][0], "collection_name", ""))
	assert.Equal(t, []string{"UPSERT_ENUMERATORS_TO_DATABASE", "PROCESS_CONFIGURATION", "PROCESS_CONFIGURATION"}, event.SubTypes())
	assert.Equal(t, events.StatusFailure, event.SubEvents[1].Status)
	assert.Equal(t, events.StatusSuccess, event.SubEvents[2].Status)
}

func TestRenderSchemas(t *testing.T) {
	svc, _ := newTestService(t, baseFiles())

	js, err := svc.JSONSchema("users.yaml", "0.0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "object", document.String(js, "type", ""))
	props, _ := document.Doc(js, "properties")
	name, _ := document.Doc(props, "name")
	assert.Equal(t, "A word", document.String(name, "description", ""))
	assert.Equal(t, int(40), document.Int(name, "maxLength", 0))
	status, _ := document.Doc(props, "status")
	values, _ := document.Array(status, "enum")
	assert.Equal(t, bson.A{"active", "archived"}, values)

	_, err = svc.BSONSchema("users.yaml", "users.0.0.1.0")
	assert.NoError(t, err)

	_, err = svc.JSONSchema("users.yaml", "9.9.9.9")
	assert.True(t, errors.Is(err, events.ErrNotFound))
	assert.Equal(t, "GET_JSON_SCHEMA", events.Capture(err).Type)
}

func TestConfigurationRoundTrip(t *testing.T) {
	doc, err := document.FromYAML([]byte(strings.TrimLeft(fullVersionFiles()["configurations/users.yaml"], "\n")))
	require.NoError(t, err)

	c, err := NewConfiguration("users.yaml", doc)
	require.NoError(t, err)
	assert.Equal(t, "users", c.Collection)
	require.Len(t, c.Versions, 1)
	assert.Equal(t, bson.D{{Key: "name", Value: 1}}, c.Versions[0].AddIndexes[0].Keys())

	again, err := NewConfiguration("users.yaml", c.ToDocument())
	require.NoError(t, err)
	assert.Equal(t, c.ToDocument(), again.ToDocument())
}

func TestIndexSpecForms(t *testing.T) {
	v, err := NewVersion("users", bson.D{
		{Key: "version", Value: "1.0.0.0"},
		{Key: "add_indexes", Value: bson.A{
			bson.D{{Key: "name", Value: "byAge"}, {Key: "key", Value: bson.D{{Key: "age", Value: -1}}}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "age", Value: -1}}, v.AddIndexes[0].Keys())

	_, err = NewVersion("users", bson.D{
		{Key: "version", Value: "1.0.0.0"},
		{Key: "add_indexes", Value: bson.A{
			bson.D{{Key: "name", Value: "bad"}, {Key: "key", Value: bson.D{{Key: "age", Value: 2}}}},
		}},
	})
	assert.True(t, errors.Is(err, events.ErrValidation))

	_, err = NewVersion("users", bson.D{{Key: "version", Value: "1.0"}})
	assert.True(t, errors.Is(err, events.ErrValidation))
}

func TestVersionPointer(t *testing.T) {
	db := newFakeDB()
	m := NewVersionManager(db, "versions")
	ctx := context.Background()

	current, err := m.Current(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", current.String())

	db.docs["versions"] = []bson.D{{{Key: "collection_name", Value: "users"}, {Key: "current_version", Value: "1.2.3.4"}}}
	current, err = m.Current(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, current.Parts())

	db.docs["versions"] = append(db.docs["versions"], bson.D{{Key: "collection_name", Value: "users"}})
	_, err = m.Current(ctx, "users")
	assert.True(t, errors.Is(err, events.ErrDatabase))
}

func TestDeleteLockedConfiguration(t *testing.T) {
	svc, _ := newTestService(t, baseFiles())

	_, err := svc.LockAll(true)
	require.NoError(t, err)

	_, err = svc.Configurations().Delete("users.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrLocked))
	assert.Contains(t, err.Error(), "cannot delete locked configuration")

	c, err := svc.Configuration("users.yaml")
	require.NoError(t, err)
	assert.True(t, c.Locked)

	_, err = svc.LockAll(false)
	require.NoError(t, err)
	_, err = svc.Configurations().Delete("users.yaml")
	assert.NoError(t, err)
}

func TestDropDatabase(t *testing.T) {
	svc, db := newTestService(t, baseFiles())

	event, err := svc.DropDatabase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events.StatusSuccess, event.Status)
	assert.Equal(t, []string{"DropDatabase"}, db.calls)
}

func TestSchemaChecksum(t *testing.T) {
	rendered := bson.D{{Key: "bsonType", Value: "object"}}
	first, err := schemaChecksum(rendered)
	require.NoError(t, err)
	assert.Len(t, first, 16)

	second, err := schemaChecksum(bson.D{{Key: "bsonType", Value: "object"}})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = schemaChecksum(bson.D{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}
