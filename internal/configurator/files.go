package configurator

import (
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
)

type fileOp struct {
	id, typ string
}

// Files manages the plain documents of one folder. Migration pipelines and
// test data are JSON arrays and carry no lock flag.
type Files struct {
	Store  interfaces.Store
	Folder string
	Kind   string

	list, get, put, remove fileOp
}

// Migrations manages the migration pipelines.
func (s *Service) Migrations() Files {
	return Files{
		Store:  s.store,
		Folder: s.cfg.MigrationsFolder,
		Kind:   "migration",
		list:   fileOp{"MIG-01", "GET_MIGRATIONS"},
		get:    fileOp{"MIG-02", "GET_MIGRATION"},
		put:    fileOp{"MIG-08", "UPDATE_MIGRATION"},
		remove: fileOp{"MIG-06", "DELETE_MIGRATION"},
	}
}

// TestData manages the test data files.
func (s *Service) TestData() Files {
	return Files{
		Store:  s.store,
		Folder: s.cfg.TestDataFolder,
		Kind:   "test data",
		list:   fileOp{"TST-01", "GET_TEST_DATA_FILES"},
		get:    fileOp{"TST-02", "GET_TEST_DATA"},
		put:    fileOp{"TST-03", "PUT_TEST_DATA"},
		remove: fileOp{"TST-04", "DELETE_TEST_DATA"},
	}
}

func (f Files) List() ([]interfaces.File, error) {
	files, err := f.Store.GetDocuments(f.Folder)
	if err != nil {
		event := events.New(f.list.id, f.list.typ)
		return nil, events.Wrap(event, err, "failed to list "+f.Kind+" files")
	}
	return files, nil
}

// Get reads a file whose root may be a document or an array.
func (f Files) Get(name string) (any, error) {
	v, err := f.Store.GetValue(f.Folder, name)
	if err != nil {
		event := events.New(f.get.id, f.get.typ).Set("file_name", name)
		return nil, events.Wrap(event, err, "failed to get "+f.Kind+" "+name)
	}
	return v, nil
}

func (f Files) Put(name string, value any) (interfaces.File, error) {
	file, err := f.Store.PutDocument(f.Folder, name, value)
	if err != nil {
		event := events.New(f.put.id, f.put.typ).Set("file_name", name)
		return interfaces.File{}, events.Wrap(event, err, "failed to put "+f.Kind+" "+name)
	}
	return file, nil
}

func (f Files) Delete(name string) (*events.Event, error) {
	event := events.New(f.remove.id, f.remove.typ).Set("file_name", name)
	deleted, err := f.Store.DeleteDocument(f.Folder, name)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to delete "+f.Kind+" "+name)
	}
	event.Append(deleted)
	event.Succeed()
	return event, nil
}
