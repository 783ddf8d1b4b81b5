package configurator

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage"
)

// Configuration is the ordered list of versions of one collection. The
// collection is named after the file.
type Configuration struct {
	FileName    string
	Collection  string
	Title       string
	Description string
	Versions    []*Version
	Locked      bool
}

func NewConfiguration(fileName string, doc bson.D) (*Configuration, error) {
	if fileName == "" {
		event := events.New("CFG-01", "CREATE_CONFIGURATION")
		return nil, events.Fail(event, events.KindValidation, "configuration file name is required", nil)
	}
	c := &Configuration{
		FileName:    fileName,
		Collection:  storage.BaseName(fileName),
		Title:       document.String(doc, "title", ""),
		Description: document.String(doc, "description", ""),
		Locked:      document.Bool(doc, "_locked", false),
	}

	items, _ := document.Array(doc, "versions")
	for _, item := range items {
		entry, ok := item.(bson.D)
		if !ok {
			event := events.New("CFG-01", "CREATE_CONFIGURATION").Set("file_name", fileName)
			return nil, events.Fail(event, events.KindValidation, "version entries of "+fileName+" must be mappings", nil)
		}
		v, err := NewVersion(c.Collection, entry)
		if err != nil {
			event := events.New("CFG-01", "CREATE_CONFIGURATION").Set("file_name", fileName)
			return nil, events.Wrap(event, err, "failed to construct configuration "+fileName)
		}
		c.Versions = append(c.Versions, v)
	}
	return c, nil
}

func (c *Configuration) Name() string     { return c.FileName }
func (c *Configuration) IsLocked() bool   { return c.Locked }
func (c *Configuration) SetLocked(v bool) { c.Locked = v }

func (c *Configuration) ToDocument() bson.D {
	versions := make(bson.A, len(c.Versions))
	for i, v := range c.Versions {
		versions[i] = v.ToDocument()
	}
	return bson.D{
		{Key: "file_name", Value: c.FileName},
		{Key: "_locked", Value: c.Locked},
		{Key: "title", Value: c.Title},
		{Key: "description", Value: c.Description},
		{Key: "versions", Value: versions},
	}
}

// Version finds a version by its four part string, with or without the
// collection prefix.
func (c *Configuration) Version(s string) (*Version, bool) {
	for _, v := range c.Versions {
		if v.Number.String() == s || v.Number.Full() == s {
			return v, true
		}
	}
	return nil, false
}

// JSONSchema renders the dictionary of one version.
func (c *Configuration) JSONSchema(catalog *schema.Catalog, enums *schema.Enumerators, s string) (bson.D, error) {
	return c.render(catalog, enums, s, schema.JSON)
}

// BSONSchema renders the dictionary of one version.
func (c *Configuration) BSONSchema(catalog *schema.Catalog, enums *schema.Enumerators, s string) (bson.D, error) {
	return c.render(catalog, enums, s, schema.BSON)
}

func (c *Configuration) render(catalog *schema.Catalog, enums *schema.Enumerators, s string, d schema.Dialect) (bson.D, error) {
	event := events.New("CFG-02", "GET_JSON_SCHEMA")
	if d == schema.BSON {
		event = events.New("CFG-03", "GET_BSON_SCHEMA")
	}
	event.Set("configuration", c.FileName).Set("version", s)

	v, ok := c.Version(s)
	if !ok {
		return nil, events.Fail(event, events.KindNotFound, "version "+s+" not found", nil)
	}
	set, err := enums.ForVersion(v.Number.EnumeratorVersion())
	if err != nil {
		return nil, events.Wrap(event, err, "cannot render "+v.Number.Full())
	}
	var rendered bson.D
	if d == schema.BSON {
		rendered, err = v.BSONSchema(catalog, set)
	} else {
		rendered, err = v.JSONSchema(catalog, set)
	}
	if err != nil {
		return nil, events.Wrap(event, err, "cannot render "+v.Number.Full())
	}
	return rendered, nil
}

// Process applies every version in order. A failing version stops the
// collection since later versions build on it.
func (c *Configuration) Process(ctx context.Context, r *Runner) (*events.Event, error) {
	event := events.New("CFG-05", "PROCESS_CONFIGURATION").
		Set("configuration_name", c.FileName).
		Set("version_count", len(c.Versions))
	for _, v := range c.Versions {
		sub, err := v.Process(ctx, r)
		event.Append(sub)
		if err != nil {
			return event, events.Wrap(event, err, "cannot process configuration "+c.FileName)
		}
	}
	event.Succeed()
	return event, nil
}
