package injector

import (
	"net/http"

	"github.com/google/wire"

	"github.com/zeusync/configurator/internal/config"
	"github.com/zeusync/configurator/internal/configurator"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/observability/metrics"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
	"github.com/zeusync/configurator/internal/server"
)

// InputFolder is the root of the configuration files. Empty falls back to
// INPUT_FOLDER and then /input.
type InputFolder string

// App holds the wired process components.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Service *configurator.Service
	Server  *server.Server
}

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	metrics.Provide,
	wire.Bind(new(log.Log), new(*log.Logger)),
	wire.Bind(new(metrics.Recorder), new(*metrics.Prometheus)),
	ProvideStore,
	wire.Bind(new(interfaces.Store), new(*storage.FileStore)),
	ProvideCatalog,
	configurator.MongoDialer,
	configurator.NewService,
	ProvideHealth,
	server.NewHandlers,
	ProvideServerConfig,
	server.NewServer,
	wire.Struct(new(App), "*"),
)

func ProvideConfig(folder InputFolder) (*config.Config, error) {
	return config.Load(string(folder))
}

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.Provide(log.ParseLevel(cfg.LoggingLevel))
}

func ProvideStore(cfg *config.Config) *storage.FileStore {
	return storage.NewFileStore(cfg.InputFolder)
}

func ProvideCatalog(store interfaces.Store, cfg *config.Config, logger log.Log) *schema.Catalog {
	return schema.NewCatalog(store, schema.Folders{
		Types:        cfg.TypeFolder,
		Dictionaries: cfg.DictionaryFolder,
		Enumerators:  cfg.EnumeratorFolder,
	}, cfg.RenderStackMaxDepth, logger)
}

func ProvideHealth(p *metrics.Prometheus) http.Handler {
	return p.Handler()
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	return server.ConfigFrom(cfg)
}
