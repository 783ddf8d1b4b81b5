package interfaces

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/events"
)

// Store is the document storage contract. Every failure is an *events.Error.
type Store interface {
	// GetDocument reads a mapping document.
	GetDocument(folder, name string) (bson.D, error)
	// GetValue reads a document whose root may also be a sequence.
	GetValue(folder, name string) (any, error)
	// GetDocuments lists the files of a folder sorted by name.
	GetDocuments(folder string) ([]File, error)
	PutDocument(folder, name string, doc any) (File, error)
	DeleteDocument(folder, name string) (*events.Event, error)
	FileExists(folder, name string) bool
}

// File describes a stored document.
type File struct {
	FileName  string `json:"file_name" bson:"file_name"`
	CreatedAt string `json:"created_at" bson:"created_at"`
	UpdatedAt string `json:"updated_at" bson:"updated_at"`
	Size      int64  `json:"size" bson:"size"`
}
