package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
)

// Dictionary is the root property tree of one collection version.
type Dictionary struct {
	FileName string
	Locked   bool
	Root     Property
}

// NewDictionary builds a dictionary from its stored document
// {file_name, _locked, root}. A document without root is the root itself.
func NewDictionary(fileName string, doc bson.D) (*Dictionary, error) {
	if fileName == "" {
		event := events.New("DIC-01", "CREATE_DICTIONARY")
		return nil, events.Fail(event, events.KindValidation, "dictionary file name is required", nil)
	}
	rootDoc, ok := document.Doc(doc, "root")
	if !ok {
		rootDoc = doc
	}
	root, err := NewProperty(rootDoc)
	if err != nil {
		event := events.New("DIC-01", "CREATE_DICTIONARY").Set("file_name", fileName)
		return nil, events.Wrap(event, err, "failed to construct dictionary "+fileName)
	}
	return &Dictionary{FileName: fileName, Locked: document.Bool(doc, "_locked", false), Root: root}, nil
}

func (d *Dictionary) Name() string     { return d.FileName }
func (d *Dictionary) IsLocked() bool   { return d.Locked }
func (d *Dictionary) SetLocked(v bool) { d.Locked = v }

func (d *Dictionary) ToDocument() bson.D {
	return bson.D{
		{Key: "file_name", Value: d.FileName},
		{Key: "_locked", Value: d.Locked},
		{Key: "root", Value: d.Root.ToDocument()},
	}
}

// JSONSchema renders the dictionary as JSON Schema.
func (d *Dictionary) JSONSchema(r *Renderer) (bson.D, error) {
	return d.render(r, JSON)
}

// BSONSchema renders the dictionary as a MongoDB $jsonSchema validator.
func (d *Dictionary) BSONSchema(r *Renderer) (bson.D, error) {
	return d.render(r, BSON)
}

func (d *Dictionary) render(r *Renderer, dialect Dialect) (bson.D, error) {
	return d.Root.Schema(r, dialect, Trail{refs: []string{d.FileName}})
}
