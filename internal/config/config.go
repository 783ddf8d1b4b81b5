// Package config builds the process configuration once at startup. Each key is
// read from a file in the api_config folder, a file in the input folder, the
// environment, or its default, in that order.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zeusync/configurator/internal/core/events"
)

// Source records where a configuration value came from.
type Source string

const (
	SourceDefault     Source = "default"
	SourceFile        Source = "file"
	SourceEnvironment Source = "environment"
	SourceFlag        Source = "flag"
)

const (
	DefaultInputFolder = "/input"
	apiConfigFolder    = "api_config"
	secretMask         = "secret"
)

// Item is one reported configuration value. Secrets are masked.
type Item struct {
	Name  string `json:"name" bson:"name"`
	Value string `json:"value" bson:"value"`
	From  Source `json:"from" bson:"from"`
}

// Config is immutable once Load returns.
type Config struct {
	BuiltAt                   string `validate:"required"`
	InputFolder               string `validate:"required"`
	LoggingLevel              string `validate:"required"`
	MongoDBName               string `validate:"required"`
	VersionCollectionName     string `validate:"required"`
	EnumeratorsCollectionName string `validate:"required"`
	TypeFolder                string `validate:"required"`
	DictionaryFolder          string `validate:"required"`
	ConfigurationFolder       string `validate:"required"`
	TestDataFolder            string `validate:"required"`
	MigrationsFolder          string `validate:"required"`
	EnumeratorFolder          string `validate:"required"`
	APIPort                   int    `validate:"gt=0,lte=65535"`
	RenderStackMaxDepth       int    `validate:"gte=1"`
	AutoProcess               bool
	ExitAfterProcessing       bool
	LoadTestData              bool
	EnableDropDatabase        bool
	MongoDBRequireTLS         bool
	MongoConnectionString     string `validate:"required"`

	items []Item
}

var validate = validator.New()

type loader struct {
	inputFolder string
	items       []Item
}

// Load reads every key. An empty inputFolder falls back to the INPUT_FOLDER
// environment variable and then to /input.
func Load(inputFolder string) (*Config, error) {
	from := SourceDefault
	if inputFolder == "" {
		if env, ok := os.LookupEnv("INPUT_FOLDER"); ok && env != "" {
			inputFolder, from = env, SourceEnvironment
		} else {
			inputFolder = DefaultInputFolder
		}
	} else {
		from = SourceFlag
	}

	l := &loader{inputFolder: inputFolder}
	l.items = append(l.items, Item{Name: "INPUT_FOLDER", Value: inputFolder, From: from})

	cfg := &Config{
		InputFolder:               inputFolder,
		BuiltAt:                   l.str("BUILT_AT", "DEFAULT! Set in code"),
		LoggingLevel:              l.str("LOGGING_LEVEL", "INFO"),
		MongoDBName:               l.str("MONGO_DB_NAME", "configurator"),
		VersionCollectionName:     l.str("VERSION_COLLECTION_NAME", "CollectionVersions"),
		EnumeratorsCollectionName: l.str("ENUMERATORS_COLLECTION_NAME", "DatabaseEnumerators"),
		TypeFolder:                l.str("TYPE_FOLDER", "types"),
		DictionaryFolder:          l.str("DICTIONARY_FOLDER", "dictionaries"),
		ConfigurationFolder:       l.str("CONFIGURATION_FOLDER", "configurations"),
		TestDataFolder:            l.str("TEST_DATA_FOLDER", "test_data"),
		MigrationsFolder:          l.str("MIGRATIONS_FOLDER", "migrations"),
		EnumeratorFolder:          l.str("ENUMERATOR_FOLDER", "enumerators"),
		APIPort:                   l.integer("API_PORT", 8081),
		RenderStackMaxDepth:       l.integer("RENDER_STACK_MAX_DEPTH", 100),
		AutoProcess:               l.boolean("AUTO_PROCESS", false),
		ExitAfterProcessing:       l.boolean("EXIT_AFTER_PROCESSING", false),
		LoadTestData:              l.boolean("LOAD_TEST_DATA", false),
		EnableDropDatabase:        l.boolean("ENABLE_DROP_DATABASE", false),
		MongoDBRequireTLS:         l.boolean("MONGODB_REQUIRE_TLS", true),
		MongoConnectionString:     l.secret("MONGO_CONNECTION_STRING", "mongodb://mongodb:27017/"),
	}
	cfg.items = l.items

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *loader) lookup(name, def string) (string, Source) {
	for _, path := range []string{
		filepath.Join(l.inputFolder, apiConfigFolder, name),
		filepath.Join(l.inputFolder, name),
	} {
		if raw, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(raw)), SourceFile
		}
	}
	if env, ok := os.LookupEnv(name); ok && env != "" {
		return env, SourceEnvironment
	}
	return def, SourceDefault
}

func (l *loader) str(name, def string) string {
	value, from := l.lookup(name, def)
	l.items = append(l.items, Item{Name: name, Value: value, From: from})
	return value
}

func (l *loader) secret(name, def string) string {
	value, from := l.lookup(name, def)
	l.items = append(l.items, Item{Name: name, Value: secretMask, From: from})
	return value
}

func (l *loader) integer(name string, def int) int {
	raw := l.str(name, strconv.Itoa(def))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (l *loader) boolean(name string, def bool) bool {
	return strings.EqualFold(l.str(name, strconv.FormatBool(def)), "true")
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		event := events.New("CFG-00", "VALIDATE_CONFIG")
		return events.Fail(event, events.KindValidation, "invalid configuration", map[string]any{"details": err.Error()})
	}
	return nil
}

// Items reports every key with its source, in load order.
func (c *Config) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// SourceOf reports where a key was read from.
func (c *Config) SourceOf(name string) Source {
	if item, ok := c.item(name); ok {
		return item.From
	}
	return SourceDefault
}

func (c *Config) item(name string) (Item, bool) {
	for _, item := range c.items {
		if item.Name == name {
			return item, true
		}
	}
	return Item{}, false
}

// AssertLocal gates write operations: BUILT_AT must be "Local" and read from a
// file, and MONGODB_REQUIRE_TLS must be false.
func (c *Config) AssertLocal() error {
	builtAt, ok := c.item("BUILT_AT")
	if !ok || builtAt.From != SourceFile || builtAt.Value != "Local" {
		event := events.New("CFG-ASSERT-02", "ASSERT_LOCAL")
		return events.Fail(event, events.KindPermission,
			"write operations are only allowed when BUILT_AT is set to 'Local' from a file",
			map[string]any{"source": string(builtAt.From), "value": builtAt.Value})
	}
	if c.MongoDBRequireTLS {
		event := events.New("CFG-ASSERT-04", "ASSERT_LOCAL")
		return events.Fail(event, events.KindPermission,
			"write operations are only allowed when MONGODB_REQUIRE_TLS is set to 'false' for local environments",
			map[string]any{"source": string(c.SourceOf("MONGODB_REQUIRE_TLS"))})
	}
	return nil
}
