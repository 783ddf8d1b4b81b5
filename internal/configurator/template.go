package configurator

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage"
)

// CreateCollection writes a starter configuration <collection>.yaml and its
// first dictionary <collection>.0.0.1.yaml. Nothing is written when either
// file already exists.
func (s *Service) CreateCollection(collection string) (*events.Event, error) {
	collection = storage.BaseName(collection)
	event := events.New("TEMPLATE-03", "CREATE_COLLECTION").Set("collection", collection)
	configurationFile := collection + storage.ExtYAML
	dictionaryFile := collection + ".0.0.1" + storage.ExtYAML

	if s.store.FileExists(s.cfg.ConfigurationFolder, configurationFile) {
		exists := events.New("TEMPLATE-01", "CONFIGURATION_EXISTS").Set("file", configurationFile)
		return event, events.Wrap(event,
			events.Failf(exists, events.KindConflict, "configuration file %s already exists", configurationFile),
			"cannot create collection "+collection)
	}
	if s.store.FileExists(s.cfg.DictionaryFolder, dictionaryFile) {
		exists := events.New("TEMPLATE-02", "DICTIONARY_EXISTS").Set("file", dictionaryFile)
		return event, events.Wrap(event,
			events.Failf(exists, events.KindConflict, "dictionary file %s already exists", dictionaryFile),
			"cannot create collection "+collection)
	}

	c, err := NewConfiguration(configurationFile, newConfigurationTemplate(collection))
	if err != nil {
		return event, events.Wrap(event, err, "invalid configuration template")
	}
	dict, err := schema.NewDictionary(dictionaryFile, newDictionaryTemplate(collection))
	if err != nil {
		return event, events.Wrap(event, err, "invalid dictionary template")
	}

	if _, err := s.Configurations().Save(c); err != nil {
		return event, events.Wrap(event, err, "cannot save "+configurationFile)
	}
	if _, err := s.catalog.Dictionaries().Save(dict); err != nil {
		return event, events.Wrap(event, err, "cannot save "+dictionaryFile)
	}
	event.Set("configuration", configurationFile).Set("dictionary", dictionaryFile)
	event.Succeed()
	s.logger.Info("Collection created", log.String("collection", collection))
	return event, nil
}

func newConfigurationTemplate(collection string) bson.D {
	return bson.D{
		{Key: "title", Value: collection + " Configuration"},
		{Key: "description", Value: "Collection for managing " + collection},
		{Key: "versions", Value: bson.A{bson.D{{Key: "version", Value: "0.0.1.0"}}}},
	}
}

func newDictionaryTemplate(collection string) bson.D {
	field := func(name, description, typ string, extra ...bson.E) bson.D {
		d := bson.D{
			{Key: "name", Value: name},
			{Key: "description", Value: description},
			{Key: "type", Value: typ},
			{Key: "required", Value: true},
		}
		return append(d, extra...)
	}
	return bson.D{{Key: "root", Value: bson.D{
		{Key: "name", Value: "root"},
		{Key: "description", Value: "A " + collection + " collection for testing the schema system"},
		{Key: "type", Value: "object"},
		{Key: "properties", Value: bson.A{
			field("_id", "A unique identifier", "identifier"),
			field("name", "The name", "word"),
			field("status", "The current status", "enum", bson.E{Key: "enums", Value: "default_status"}),
			field("last_saved", "The last time this document was saved", "breadcrumb"),
		}},
	}}}
}
