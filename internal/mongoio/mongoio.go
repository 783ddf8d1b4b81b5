package mongoio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/observability/metrics"
)

const (
	serverSelectionTimeout = 2 * time.Second
	socketTimeout          = 5 * time.Second

	// DropLimit is the largest collection DropDatabase agrees to discard.
	DropLimit = 100
)

// Database is the MongoDB contract used by the configurator. Operations that
// mutate the database return the event describing what was done.
type Database interface {
	GetCollection(ctx context.Context, name string) (*mongo.Collection, error)
	GetDocuments(ctx context.Context, collection string, match, sort bson.D) ([]bson.D, error)
	CountDocuments(ctx context.Context, collection string, match bson.D) (int64, error)
	Upsert(ctx context.Context, collection string, match, data bson.D) (bson.D, error)
	RemoveSchemaValidation(ctx context.Context, collection string) (*events.Event, error)
	RemoveIndex(ctx context.Context, collection, index string) (*events.Event, error)
	AddIndex(ctx context.Context, collection, index string, keys bson.D) (*events.Event, error)
	ExecuteMigration(ctx context.Context, collection string, pipeline bson.A) (*events.Event, error)
	LoadJSONData(ctx context.Context, collection, dataFile string, documents bson.A) (*events.Event, error)
	ApplySchemaValidation(ctx context.Context, collection string, schema bson.D) (*events.Event, error)
	DropDatabase(ctx context.Context) (*events.Event, error)
	Disconnect(ctx context.Context) error
}

// DropPolicy holds the preconditions of DropDatabase.
type DropPolicy struct {
	Enabled bool
	BuiltAt string
	// ConnectionFromDefault is true when the connection string was not
	// supplied by a file or the environment.
	ConnectionFromDefault bool
}

// Options configures a connection.
type Options struct {
	URI      string
	Database string
	Drop     DropPolicy
}

// MongoIO implements Database with the official driver.
type MongoIO struct {
	client  *mongo.Client
	db      *mongo.Database
	policy  DropPolicy
	logger  log.Log
	metrics metrics.Recorder
}

var _ Database = (*MongoIO)(nil)

// Connect dials MongoDB and pings it so that a bad address fails here and not
// on the first operation.
func Connect(ctx context.Context, opts Options, logger log.Log, recorder metrics.Recorder) (*MongoIO, error) {
	event := events.New("MON-01", "CONNECTION").Set("database", opts.Database)
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetSocketTimeout(socketTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, events.Fail(event, events.KindDatabase, "failed to connect to MongoDB: "+err.Error(), nil)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, events.Fail(event, events.KindDatabase, "failed to connect to MongoDB: "+err.Error(), nil)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	m := &MongoIO{
		client:  client,
		db:      client.Database(opts.Database),
		policy:  opts.Drop,
		logger:  logger.With(log.String("component", "mongoio"), log.String("database", opts.Database)),
		metrics: recorder,
	}
	m.logger.Info("Connected to MongoDB")
	return m, nil
}

// Disconnect closes the client. Failures are logged and never returned.
func (m *MongoIO) Disconnect(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	if err := m.client.Disconnect(ctx); err != nil {
		m.logger.Warn("Error during disconnect", log.Error(err))
	} else {
		m.logger.Info("Disconnected from MongoDB")
	}
	m.client = nil
	return nil
}

func (m *MongoIO) observe(operation string, start time.Time, err error) {
	m.metrics.Operation("mongoio", operation, err, time.Since(start))
}

func dbFailure(event *events.Event, message string, err error, data map[string]any) *events.Error {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["cause"] = err.Error()
	return events.Fail(event, events.KindDatabase, message+": "+err.Error(), data)
}

// GetCollection returns the collection, creating it when absent.
func (m *MongoIO) GetCollection(ctx context.Context, name string) (*mongo.Collection, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err == nil && len(names) == 0 {
		if err = m.db.CreateCollection(ctx, name); err == nil {
			m.logger.Info("Created collection", log.String("collection", name))
		}
	}
	if err != nil {
		event := events.New("MON-03", "COLLECTION")
		return nil, dbFailure(event, "failed to get/create collection "+name, err,
			map[string]any{"collection": name})
	}
	return m.db.Collection(name), nil
}

func (m *MongoIO) GetDocuments(ctx context.Context, collection string, match, sort bson.D) (docs []bson.D, err error) {
	defer func(start time.Time) { m.observe("get_documents", start, err) }(time.Now())
	event := events.New("MON-04", "GET_DOCUMENTS").Set("collection", collection)

	coll, err := m.GetCollection(ctx, collection)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to get documents from "+collection)
	}
	if match == nil {
		match = bson.D{}
	}
	findOpts := options.Find()
	if len(sort) > 0 {
		findOpts.SetSort(sort)
	}
	cursor, err := coll.Find(ctx, match, findOpts)
	if err != nil {
		return nil, dbFailure(event, "failed to get documents from "+collection, err, nil)
	}
	docs = []bson.D{}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, dbFailure(event, "failed to read documents from "+collection, err, nil)
	}
	return docs, nil
}

func (m *MongoIO) CountDocuments(ctx context.Context, collection string, match bson.D) (int64, error) {
	event := events.New("MON-"+collection, "COUNT_DOCUMENTS").Set("collection", collection)
	if match == nil {
		match = bson.D{}
	}
	count, err := m.db.Collection(collection).CountDocuments(ctx, match)
	if err != nil {
		return 0, dbFailure(event, "failed to count documents in "+collection, err, nil)
	}
	return count, nil
}

// Upsert sets data on the document matching match, inserting it when absent,
// and returns the document after the update.
func (m *MongoIO) Upsert(ctx context.Context, collection string, match, data bson.D) (doc bson.D, err error) {
	defer func(start time.Time) { m.observe("upsert", start, err) }(time.Now())
	event := events.New("MON-05", "UPSERT").Set("collection", collection)

	coll, err := m.GetCollection(ctx, collection)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to upsert document in "+collection)
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err = coll.FindOneAndUpdate(ctx, match, bson.D{{Key: "$set", Value: data}}, opts).Decode(&doc)
	if err != nil {
		return nil, dbFailure(event, "failed to upsert document in "+collection, err, nil)
	}
	return doc, nil
}

// RemoveSchemaValidation clears the validator, creating the collection first
// when needed.
func (m *MongoIO) RemoveSchemaValidation(ctx context.Context, collection string) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("remove_schema", start, err) }(time.Now())
	event = events.New("MON-06", "REMOVE_SCHEMA")

	if _, err = m.GetCollection(ctx, collection); err != nil {
		return event, events.Wrap(event, err, "failed to remove schema validation from "+collection)
	}
	cmd := bson.D{{Key: "collMod", Value: collection}, {Key: "validator", Value: bson.D{}}}
	if err = m.db.RunCommand(ctx, cmd).Err(); err != nil {
		return event, dbFailure(event, "failed to remove schema validation from "+collection, err,
			map[string]any{"collection": collection})
	}
	m.logger.Info("Schema validation cleared", log.String("collection", collection))
	event.Set("collection", collection).Set("operation", "schema_validation_removed")
	event.Succeed()
	return event, nil
}

func (m *MongoIO) RemoveIndex(ctx context.Context, collection, index string) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("remove_index", start, err) }(time.Now())
	event = events.New("MON-07", "REMOVE_INDEX")

	coll, err := m.GetCollection(ctx, collection)
	if err != nil {
		return event, events.Wrap(event, err, "failed to remove index "+index+" from "+collection)
	}
	if _, err = coll.Indexes().DropOne(ctx, index); err != nil {
		return event, dbFailure(event, "failed to remove index "+index+" from "+collection, err,
			map[string]any{"collection": collection, "index": index})
	}
	m.logger.Info("Dropped index", log.String("collection", collection), log.String("index", index))
	event.Set("collection", collection).Set("index_name", index).Set("operation", "dropped")
	event.Succeed()
	return event, nil
}

func (m *MongoIO) AddIndex(ctx context.Context, collection, index string, keys bson.D) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("add_index", start, err) }(time.Now())
	event = events.New("MON-09", "ADD_INDEX")

	coll, err := m.GetCollection(ctx, collection)
	if err != nil {
		return event, events.Wrap(event, err, "failed to add index "+index+" to "+collection)
	}
	model := mongo.IndexModel{Keys: keys, Options: options.Index().SetName(index)}
	if _, err = coll.Indexes().CreateOne(ctx, model); err != nil {
		return event, dbFailure(event, "failed to add index "+index+" to "+collection, err,
			map[string]any{"collection": collection, "index": index})
	}
	m.logger.Info("Created index", log.String("collection", collection), log.String("index", index))
	event.Set("collection", collection).Set("index_name", index).Set("index_keys", keys).Set("operation", "created")
	event.Succeed()
	return event, nil
}

// ExecuteMigration runs an aggregation pipeline and drains its cursor so that
// $out and $merge stages complete.
func (m *MongoIO) ExecuteMigration(ctx context.Context, collection string, pipeline bson.A) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("execute_migration", start, err) }(time.Now())
	event = events.New("MON-08", "EXECUTE_MIGRATION").Set("collection", collection)

	coll, err := m.GetCollection(ctx, collection)
	if err != nil {
		return event, events.Wrap(event, err, "failed to execute migration on "+collection)
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return event, dbFailure(event, "failed to execute migration on "+collection, err, nil)
	}
	var results []bson.D
	if err = cursor.All(ctx, &results); err != nil {
		return event, dbFailure(event, "failed to execute migration on "+collection, err, nil)
	}
	m.logger.Info("Executed migration", log.String("collection", collection), log.Int("stages", len(pipeline)))
	event.Set("stages", len(pipeline))
	event.Succeed()
	return event, nil
}

// LoadJSONData bulk inserts documents. A partial failure reports the error of
// every rejected document.
func (m *MongoIO) LoadJSONData(ctx context.Context, collection, dataFile string, documents bson.A) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("load_data", start, err) }(time.Now())
	event = events.New("MON-11", "LOAD_DATA").Set("collection", collection).Set("data_file", dataFile)

	coll, err := m.GetCollection(ctx, collection)
	if err != nil {
		return event, events.Wrap(event, err, "failed to load data into "+collection)
	}
	if len(documents) == 0 {
		event.Set("documents_loaded", 0)
		event.Succeed()
		return event, nil
	}

	m.logger.Info("Loading documents", log.String("collection", collection),
		log.String("data_file", dataFile), log.Int("documents", len(documents)))
	result, err := coll.InsertMany(ctx, []any(documents))
	if err != nil {
		var bulk mongo.BulkWriteException
		if errors.As(err, &bulk) {
			details := make([]map[string]any, len(bulk.WriteErrors))
			for i, we := range bulk.WriteErrors {
				details[i] = map[string]any{"index": we.Index, "code": we.Code, "message": we.Message}
			}
			return event, events.Fail(event, events.KindDatabase,
				fmt.Sprintf("bulk write operation failed: %d of %d documents rejected", len(details), len(documents)),
				map[string]any{"write_errors": details, "cause": err.Error()})
		}
		return event, dbFailure(event, "bulk write operation failed unexpectedly", err, nil)
	}

	ids := make([]string, len(result.InsertedIDs))
	for i, id := range result.InsertedIDs {
		ids[i] = fmt.Sprint(id)
	}
	event.Set("documents_loaded", len(documents)).Set("inserted_ids", ids)
	event.Succeed()
	return event, nil
}

// ApplySchemaValidation installs schema as a moderate, erroring $jsonSchema
// validator. The event data is the installed schema.
func (m *MongoIO) ApplySchemaValidation(ctx context.Context, collection string, schema bson.D) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("apply_schema", start, err) }(time.Now())
	event = events.New("MON-10", "APPLY_SCHEMA")

	if _, err = m.GetCollection(ctx, collection); err != nil {
		return event, events.Wrap(event, err, "failed to apply schema validation to "+collection)
	}
	cmd := bson.D{
		{Key: "collMod", Value: collection},
		{Key: "validator", Value: bson.D{{Key: "$jsonSchema", Value: schema}}},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err = m.db.RunCommand(ctx, cmd).Err(); err != nil {
		return event, dbFailure(event, "failed to apply schema validation to "+collection, err,
			map[string]any{"collection": collection})
	}
	m.logger.Info("Schema validation applied", log.String("collection", collection))
	event.Set("collection", collection).Set("schema", schema)
	event.Succeed()
	return event, nil
}

// DropDatabase discards the database when every DropPolicy precondition holds
// and no collection holds more than DropLimit documents.
func (m *MongoIO) DropDatabase(ctx context.Context) (event *events.Event, err error) {
	defer func(start time.Time) { m.observe("drop_database", start, err) }(time.Now())
	event = events.New("MON-12", "DROP_DATABASE").Set("database", m.db.Name())

	if err = m.policy.check(); err != nil {
		return event, events.Fail(event, events.KindSafetyGate, err.Error(), nil)
	}

	names, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return event, dbFailure(event, "failed to list collections", err, nil)
	}
	var oversized []map[string]any
	for _, name := range names {
		count, err := m.CountDocuments(ctx, name, nil)
		if err != nil {
			return event, events.Wrap(event, err, "check collection counts failed")
		}
		sub := event.Child("MON-"+name, "COUNT_DOCUMENTS").Set("document_count", count)
		sub.Succeed()
		if count > DropLimit {
			oversized = append(oversized, map[string]any{"collection": name, "document_count": count})
		}
	}
	if len(oversized) > 0 {
		return event, events.Fail(event, events.KindSafetyGate,
			fmt.Sprintf("drop database safety limit exceeded: collections with more than %d documents found", DropLimit),
			map[string]any{"collections": oversized})
	}

	if err = m.db.Drop(ctx); err != nil {
		return event, dbFailure(event, "failed to drop database", err, nil)
	}
	m.logger.Warn("Dropped database")
	event.Succeed()
	return event, nil
}

var (
	errDropDisabled   = errors.New("drop database feature is not enabled")
	errDropNotLocal   = errors.New("drop database not allowed on non-local build")
	errDropConnection = errors.New("drop database not allowed with a configured connection string")
)

func (p DropPolicy) check() error {
	switch {
	case !p.Enabled:
		return errDropDisabled
	case p.BuiltAt != "Local":
		return errDropNotLocal
	case !p.ConnectionFromDefault:
		return errDropConnection
	}
	return nil
}
