package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
)

// Folders names the storage folders of the catalog.
type Folders struct {
	Types        string
	Dictionaries string
	Enumerators  string
}

// Catalog loads and persists dictionaries, types and enumeration sets. It is
// the store-backed Resolver used for rendering.
type Catalog struct {
	store    interfaces.Store
	folders  Folders
	maxDepth int
	logger   log.Log
}

var _ Resolver = (*Catalog)(nil)

func NewCatalog(store interfaces.Store, folders Folders, maxDepth int, logger log.Log) *Catalog {
	return &Catalog{
		store:    store,
		folders:  folders,
		maxDepth: maxDepth,
		logger:   logger.With(log.String("component", "catalog")),
	}
}

// Renderer returns a renderer bound to this catalog and the given enumerations.
func (c *Catalog) Renderer(enums *EnumerationSet) *Renderer {
	return NewRenderer(c, enums, c.maxDepth)
}

func (c *Catalog) Dictionary(name string) (*Dictionary, error) {
	doc, err := c.store.GetDocument(c.folders.Dictionaries, name)
	if err != nil {
		return nil, err
	}
	return NewDictionary(name, doc)
}

func (c *Catalog) Type(name string) (*Type, error) {
	doc, err := c.store.GetDocument(c.folders.Types, name)
	if err != nil {
		return nil, err
	}
	return NewType(name, doc)
}

func (c *Catalog) EnumerationSet(name string) (*EnumerationSet, error) {
	doc, err := c.store.GetDocument(c.folders.Enumerators, name)
	if err != nil {
		return nil, err
	}
	return NewEnumerationSet(name, doc)
}

// Enumerators loads every enumeration set.
func (c *Catalog) Enumerators() (*Enumerators, error) {
	files, err := c.store.GetDocuments(c.folders.Enumerators)
	if err != nil {
		return nil, err
	}
	all := &Enumerators{}
	for _, file := range files {
		set, err := c.EnumerationSet(file.FileName)
		if err != nil {
			return nil, err
		}
		all.Sets = append(all.Sets, set)
	}
	c.logger.Debug("Loaded enumerators", log.Int("sets", len(all.Sets)))
	return all, nil
}

// List returns the files of one folder.
func (c *Catalog) List(folder string) ([]interfaces.File, error) {
	return c.store.GetDocuments(folder)
}

func (c *Catalog) Folders() Folders {
	return c.folders
}

// Dictionaries is the persistence service for dictionaries.
func (c *Catalog) Dictionaries() Service {
	return Service{
		Store: c.store, Folder: c.folders.Dictionaries, Kind: "dictionary", Prefix: "DIC",
		Load: func(name string) (Document, error) { return c.Dictionary(name) },
	}
}

// Types is the persistence service for types.
func (c *Catalog) Types() Service {
	return Service{
		Store: c.store, Folder: c.folders.Types, Kind: "type", Prefix: "TYP",
		Load: func(name string) (Document, error) { return c.Type(name) },
	}
}

// EnumerationSets is the persistence service for enumeration sets.
func (c *Catalog) EnumerationSets() Service {
	return Service{
		Store: c.store, Folder: c.folders.Enumerators, Kind: "enumerators", Prefix: "ENU",
		Load: func(name string) (Document, error) { return c.EnumerationSet(name) },
	}
}

// PutDictionary validates doc as a dictionary and saves it.
func (c *Catalog) PutDictionary(name string, doc bson.D) (interfaces.File, error) {
	dict, err := NewDictionary(name, doc)
	if err != nil {
		return interfaces.File{}, err
	}
	return c.Dictionaries().Save(dict)
}

// PutType validates doc as a type and saves it.
func (c *Catalog) PutType(name string, doc bson.D) (interfaces.File, error) {
	t, err := NewType(name, doc)
	if err != nil {
		return interfaces.File{}, err
	}
	return c.Types().Save(t)
}

// PutEnumerationSet validates doc as an enumeration set and saves it.
func (c *Catalog) PutEnumerationSet(name string, doc bson.D) (interfaces.File, error) {
	set, err := NewEnumerationSet(name, doc)
	if err != nil {
		return interfaces.File{}, err
	}
	return c.EnumerationSets().Save(set)
}

// LockAll locks or unlocks every type, dictionary and enumeration set. Each
// kind is attempted even when another fails.
func (c *Catalog) LockAll(locked bool) (*events.Event, error) {
	event := events.New("CAT-01", "LOCK_ALL_CATALOG").Set("locked", locked)
	var first error
	for _, svc := range []Service{c.Types(), c.Dictionaries(), c.EnumerationSets()} {
		sub, err := svc.LockAll(locked)
		event.Append(sub)
		if err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return event, events.Wrap(event, first, "cannot lock catalog")
	}
	event.Succeed()
	return event, nil
}
