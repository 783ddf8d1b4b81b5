// Package storage reads and writes the YAML and JSON documents of the input folder.
package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
)

const (
	ExtYAML = ".yaml"
	ExtJSON = ".json"
)

var _ interfaces.Store = (*FileStore)(nil)

// FileStore stores documents under root/<folder>/<name>.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(folder, name string) string {
	return filepath.Join(s.root, folder, name)
}

func (s *FileStore) GetDocument(folder, name string) (bson.D, error) {
	v, err := s.GetValue(folder, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return bson.D{}, nil
	}
	d, ok := v.(bson.D)
	if !ok {
		event := events.New("FIL-06", "GET_DOCUMENT")
		return nil, events.Fail(event, events.KindValidation, "document root is not a mapping",
			map[string]any{"folder": folder, "file_name": name})
	}
	return d, nil
}

func (s *FileStore) GetValue(folder, name string) (any, error) {
	event := events.New("FIL-06", "GET_DOCUMENT")
	data := map[string]any{"folder": folder, "file_name": name}

	raw, err := os.ReadFile(s.path(folder, name))
	if err != nil {
		return nil, fileError(event, err, "failed to read "+name, data)
	}

	var v any
	switch ext(name) {
	case ExtYAML:
		v, err = document.DecodeYAML(raw)
	case ExtJSON:
		v, err = document.DecodeJSON(raw)
	default:
		return nil, events.Fail(event, events.KindValidation, "unsupported file type "+name, data)
	}
	if err != nil {
		data["cause"] = err.Error()
		return nil, events.Fail(event, events.KindValidation, "failed to parse "+name, data)
	}
	return v, nil
}

func (s *FileStore) GetDocuments(folder string) ([]interfaces.File, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, folder))
	if errors.Is(err, fs.ErrNotExist) {
		return []interfaces.File{}, nil
	}
	if err != nil {
		event := events.New("FIL-03", "GET_DOCUMENTS")
		return nil, fileError(event, err, "failed to list "+folder, map[string]any{"folder": folder})
	}

	files := make([]interfaces.File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file, err := s.stat(folder, entry.Name())
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FileName < files[j].FileName })
	return files, nil
}

func (s *FileStore) stat(folder, name string) (interfaces.File, error) {
	info, err := os.Stat(s.path(folder, name))
	if err != nil {
		event := events.New("FIL-01", "GET_FILE_PROPERTIES")
		return interfaces.File{}, fileError(event, err, "failed to get file properties for "+name,
			map[string]any{"folder": folder, "file_name": name})
	}
	// Portable creation times are not available, the modification time stands in.
	modified := info.ModTime().Format(time.RFC3339)
	return interfaces.File{FileName: name, CreatedAt: modified, UpdatedAt: modified, Size: info.Size()}, nil
}

func (s *FileStore) PutDocument(folder, name string, doc any) (interfaces.File, error) {
	event := events.New("FIL-08", "PUT_DOCUMENT")
	data := map[string]any{"folder": folder, "file_name": name}

	var (
		raw []byte
		err error
	)
	switch ext(name) {
	case ExtYAML:
		raw, err = document.ToYAML(doc)
	case ExtJSON:
		if arr, ok := document.AsArray(doc); ok {
			raw, err = document.ToJSONArray(arr)
		} else {
			raw, err = document.ToJSON(doc)
		}
	default:
		return interfaces.File{}, events.Fail(event, events.KindValidation, "unsupported file type "+name, data)
	}
	if err != nil {
		data["cause"] = err.Error()
		return interfaces.File{}, events.Fail(event, events.KindValidation, "failed to encode "+name, data)
	}

	if err = os.MkdirAll(filepath.Join(s.root, folder), 0o755); err != nil {
		return interfaces.File{}, fileError(event, err, "failed to create folder "+folder, data)
	}
	if err = os.WriteFile(s.path(folder, name), raw, 0o644); err != nil {
		return interfaces.File{}, fileError(event, err, "failed to write "+name, data)
	}
	return s.stat(folder, name)
}

func (s *FileStore) DeleteDocument(folder, name string) (*events.Event, error) {
	event := events.New("FIL-09", "DELETE_DOCUMENT")
	if err := os.Remove(s.path(folder, name)); err != nil {
		return nil, fileError(event, err, "failed to delete "+name+" from "+folder,
			map[string]any{"folder": folder, "file_name": name})
	}
	event.Succeed()
	return event, nil
}

func (s *FileStore) FileExists(folder, name string) bool {
	info, err := os.Stat(s.path(folder, name))
	return err == nil && !info.IsDir()
}

func fileError(event *events.Event, err error, message string, data map[string]any) error {
	data["cause"] = err.Error()
	kind := events.KindStorage
	if errors.Is(err, fs.ErrNotExist) {
		kind = events.KindNotFound
	}
	return events.Fail(event, kind, message, data)
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// WithExtension appends extension unless name already ends with it. Dotted
// version suffixes such as user.1.0.0 are not extensions.
func WithExtension(name, extension string) string {
	if strings.HasSuffix(strings.ToLower(name), extension) {
		return name
	}
	return name + extension
}

// BaseName strips everything from the first dot.
func BaseName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
