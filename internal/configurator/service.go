package configurator

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/config"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/observability/metrics"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
	"github.com/zeusync/configurator/internal/mongoio"
)

// Dialer opens a database connection for one batch run.
type Dialer func(ctx context.Context) (mongoio.Database, error)

// MongoDialer connects with the configured connection string.
func MongoDialer(cfg *config.Config, logger log.Log, recorder metrics.Recorder) Dialer {
	return func(ctx context.Context) (mongoio.Database, error) {
		return mongoio.Connect(ctx, mongoio.Options{
			URI:      cfg.MongoConnectionString,
			Database: cfg.MongoDBName,
			Drop: mongoio.DropPolicy{
				Enabled:               cfg.EnableDropDatabase,
				BuiltAt:               cfg.BuiltAt,
				ConnectionFromDefault: cfg.SourceOf("MONGO_CONNECTION_STRING") == config.SourceDefault,
			},
		}, logger, recorder)
	}
}

// Service processes configurations and manages their files.
type Service struct {
	cfg     *config.Config
	store   interfaces.Store
	catalog *schema.Catalog
	dial    Dialer
	metrics metrics.Recorder
	logger  log.Log
}

func NewService(cfg *config.Config, store interfaces.Store, catalog *schema.Catalog, dial Dialer, recorder metrics.Recorder, logger log.Log) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		dial:    dial,
		metrics: recorder,
		logger:  logger.With(log.String("component", "configurator")),
	}
}

func (s *Service) Catalog() *schema.Catalog {
	return s.catalog
}

func (s *Service) Configuration(name string) (*Configuration, error) {
	doc, err := s.store.GetDocument(s.cfg.ConfigurationFolder, name)
	if err != nil {
		return nil, err
	}
	return NewConfiguration(name, doc)
}

// Configurations is the persistence service for configurations.
func (s *Service) Configurations() schema.Service {
	return schema.Service{
		Store: s.store, Folder: s.cfg.ConfigurationFolder, Kind: "configuration", Prefix: "CFG",
		Load: func(name string) (schema.Document, error) { return s.Configuration(name) },
	}
}

// PutConfiguration validates doc as a configuration and saves it.
func (s *Service) PutConfiguration(name string, doc bson.D) (interfaces.File, error) {
	c, err := NewConfiguration(name, doc)
	if err != nil {
		return interfaces.File{}, err
	}
	return s.Configurations().Save(c)
}

// JSONSchema renders one version of a configuration.
func (s *Service) JSONSchema(name, version string) (bson.D, error) {
	return s.render(name, version, schema.JSON)
}

// BSONSchema renders one version of a configuration.
func (s *Service) BSONSchema(name, version string) (bson.D, error) {
	return s.render(name, version, schema.BSON)
}

func (s *Service) render(name, version string, d schema.Dialect) (bson.D, error) {
	c, err := s.Configuration(name)
	if err != nil {
		return nil, err
	}
	enums, err := s.catalog.Enumerators()
	if err != nil {
		return nil, err
	}
	if d == schema.BSON {
		return c.BSONSchema(s.catalog, enums, version)
	}
	return c.JSONSchema(s.catalog, enums, version)
}

// ProcessAll processes every configuration. A failing collection is recorded
// and the batch moves on to the next one.
func (s *Service) ProcessAll(ctx context.Context) (*events.Event, error) {
	event := events.New("CFG-07", "PROCESS_ALL_CONFIGURATIONS").Set("run_id", events.NewRunID())
	files, err := s.store.GetDocuments(s.cfg.ConfigurationFolder)
	if err != nil {
		return event, events.Wrap(event, err, "cannot list configurations")
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.FileName
	}
	return s.process(ctx, event, names)
}

// ProcessOne processes a single configuration.
func (s *Service) ProcessOne(ctx context.Context, name string) (*events.Event, error) {
	event := events.New("CFG-08", "PROCESS_CONFIGURATION").
		Set("run_id", events.NewRunID()).
		Set("configuration_name", name)
	return s.process(ctx, event, []string{name})
}

func (s *Service) process(ctx context.Context, event *events.Event, names []string) (*events.Event, error) {
	db, err := s.dial(ctx)
	if err != nil {
		return event, events.Wrap(event, err, "cannot connect to database")
	}
	defer func() { _ = db.Disconnect(context.Background()) }()

	runner, err := s.runner(ctx, event, db)
	if err != nil {
		return event, err
	}

	var first error
	for _, name := range names {
		if err := s.processConfiguration(ctx, event, runner, name); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		event.Fail("one or more configurations failed", nil)
		return event, &events.Error{
			Kind:    events.KindOf(first),
			Message: "cannot process all configurations: " + first.Error(),
			Event:   event,
			Cause:   first,
		}
	}
	event.Succeed()
	return event, nil
}

// runner loads the enumerations and publishes them before any version is
// processed, so schema validation sees the current definitions.
func (s *Service) runner(ctx context.Context, event *events.Event, db mongoio.Database) (*Runner, error) {
	enums, err := s.catalog.Enumerators()
	if err != nil {
		return nil, events.Wrap(event, err, "cannot load enumerators")
	}
	upserted, err := enums.UpsertAll(ctx, db, s.cfg.EnumeratorsCollectionName)
	event.Append(upserted)
	if err != nil {
		return nil, events.Wrap(event, err, "cannot publish enumerators")
	}
	return &Runner{
		DB:           db,
		Store:        s.store,
		Catalog:      s.catalog,
		Enumerators:  enums,
		Pointers:     NewVersionManager(db, s.cfg.VersionCollectionName),
		Migrations:   s.cfg.MigrationsFolder,
		TestData:     s.cfg.TestDataFolder,
		LoadTestData: s.cfg.LoadTestData,
		Metrics:      s.metrics,
		Logger:       s.logger,
	}, nil
}

func (s *Service) processConfiguration(ctx context.Context, event *events.Event, r *Runner, name string) error {
	logger := s.logger.With(log.String("configuration", name))
	c, err := s.Configuration(name)
	if err != nil {
		event.Append(events.Capture(err))
		logger.Error("Cannot load configuration", log.Error(err))
		return err
	}
	logger.Info("Processing configuration", log.Int("versions", len(c.Versions)))
	sub, err := c.Process(ctx, r)
	event.Append(sub)
	if err != nil {
		logger.Error("Configuration failed", log.Error(err))
	}
	return err
}

// DropDatabase drops the database when its safety gate allows it.
func (s *Service) DropDatabase(ctx context.Context) (*events.Event, error) {
	event := events.New("DB-01", "DROP_DATABASE")
	db, err := s.dial(ctx)
	if err != nil {
		return event, events.Wrap(event, err, "cannot connect to database")
	}
	defer func() { _ = db.Disconnect(context.Background()) }()

	dropped, err := db.DropDatabase(ctx)
	event.Append(dropped)
	if err != nil {
		return event, events.Wrap(event, err, "cannot drop database")
	}
	event.Succeed()
	return event, nil
}

// LockAll locks or unlocks every type, dictionary, enumeration set and
// configuration. Each kind is attempted even when another fails.
func (s *Service) LockAll(locked bool) (*events.Event, error) {
	event := events.New("LCK-01", "LOCK_ALL").Set("locked", locked)
	catalogEvent, catalogErr := s.catalog.LockAll(locked)
	event.Append(catalogEvent)
	configEvent, configErr := s.Configurations().LockAll(locked)
	event.Append(configEvent)

	for _, err := range []error{catalogErr, configErr} {
		if err != nil {
			return event, events.Wrap(event, err, "cannot lock everything")
		}
	}
	event.Succeed()
	s.logger.Info("Lock state changed", log.Bool("locked", locked))
	return event, nil
}
