package schema

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
)

// Document is a stored, lockable definition.
type Document interface {
	Name() string
	IsLocked() bool
	SetLocked(locked bool)
	ToDocument() bson.D
}

// Service persists one kind of Document in one folder.
type Service struct {
	Store  interfaces.Store
	Folder string
	// Kind names the documents in events and messages, e.g. "dictionary".
	Kind string
	// Prefix starts every event id, e.g. "DIC".
	Prefix string
	Load   func(name string) (Document, error)
}

func (s Service) upperKind() string {
	return strings.ToUpper(strings.ReplaceAll(s.Kind, " ", "_"))
}

// Save writes the document.
func (s Service) Save(doc Document) (interfaces.File, error) {
	file, err := s.Store.PutDocument(s.Folder, doc.Name(), doc.ToDocument())
	if err != nil {
		event := events.New(s.Prefix+"-04", "PUT_"+s.upperKind()).Set("file_name", doc.Name())
		return interfaces.File{}, events.Wrap(event, err, "failed to save "+s.Kind+" "+doc.Name())
	}
	return file, nil
}

// Delete removes the document unless it is locked. A locked document is left
// untouched in storage.
func (s Service) Delete(name string) (*events.Event, error) {
	event := events.New(s.Prefix+"-05", "DELETE_"+s.upperKind()).Set("file_name", name)
	doc, err := s.Load(name)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to load "+s.Kind+" "+name)
	}
	if doc.IsLocked() {
		return nil, events.Fail(event, events.KindLocked, "cannot delete locked "+s.Kind+" "+name, nil)
	}
	deleted, err := s.Store.DeleteDocument(s.Folder, name)
	if err != nil {
		return nil, events.Wrap(event, err, "failed to delete "+s.Kind+" "+name)
	}
	event.Append(deleted)
	event.Succeed()
	return event, nil
}

// LockAll sets the lock flag of every document in the folder. A failing
// document is recorded and the batch continues; the returned error reports
// the first failure.
func (s Service) LockAll(locked bool) (*events.Event, error) {
	event := events.New(s.Prefix+"-03", "LOCK_ALL_"+s.upperKind()).Set("locked", locked)
	files, err := s.Store.GetDocuments(s.Folder)
	if err != nil {
		return event, events.Wrap(event, err, "cannot list "+s.Folder)
	}

	var first error
	for _, file := range files {
		sub := event.Child(s.Prefix+"-"+file.FileName, "LOCK_"+s.upperKind())
		if err := s.lockOne(file.FileName, locked); err != nil {
			sub.Append(events.Capture(err))
			sub.Fail("failed to lock "+s.Kind+" "+file.FileName, nil)
			if first == nil {
				first = err
			}
			continue
		}
		sub.Succeed()
	}

	if first != nil {
		event.Fail("failed to lock all "+s.Kind+" documents", nil)
		return event, &events.Error{
			Kind:    events.KindOf(first),
			Message: "cannot lock all " + s.Kind + " documents: " + first.Error(),
			Event:   event,
			Cause:   first,
		}
	}
	event.Succeed()
	return event, nil
}

func (s Service) lockOne(name string, locked bool) error {
	doc, err := s.Load(name)
	if err != nil {
		return err
	}
	doc.SetLocked(locked)
	_, err = s.Save(doc)
	return err
}
