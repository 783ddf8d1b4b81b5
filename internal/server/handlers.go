package server

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/singleflight"

	"github.com/zeusync/configurator/internal/config"
	"github.com/zeusync/configurator/internal/configurator"
	"github.com/zeusync/configurator/internal/core/document"
	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/schema"
	"github.com/zeusync/configurator/internal/core/storage/interfaces"
)

// Handlers serves the configurator API.
type Handlers struct {
	cfg    *config.Config
	svc    *configurator.Service
	health http.Handler
	flight singleflight.Group
	logger log.Log
}

// NewHandlers builds the API handlers. health serves GET /api/health.
func NewHandlers(cfg *config.Config, svc *configurator.Service, health http.Handler, logger log.Log) *Handlers {
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	return &Handlers{
		cfg:    cfg,
		svc:    svc,
		health: health,
		logger: logger.With(log.String("component", "handlers")),
	}
}

// resource binds one stored document kind to its routes.
type resource struct {
	service func() schema.Service
	put     func(name string, doc bson.D) (interfaces.File, error)
}

func (h *Handlers) resources() map[string]resource {
	catalog := h.svc.Catalog()
	return map[string]resource{
		"configurations": {service: h.svc.Configurations, put: h.svc.PutConfiguration},
		"dictionaries":   {service: catalog.Dictionaries, put: catalog.PutDictionary},
		"types":          {service: catalog.Types, put: catalog.PutType},
		"enumerators":    {service: catalog.EnumerationSets, put: catalog.PutEnumerationSet},
	}
}

// files binds a folder of plain JSON documents to its routes.
func (h *Handlers) files() map[string]func() configurator.Files {
	return map[string]func() configurator.Files{
		"migrations": h.svc.Migrations,
		"test_data":  h.svc.TestData,
	}
}

// respond writes v as relaxed extended JSON so document key order survives.
func respond(c *gin.Context, status int, v any) {
	var (
		body []byte
		err  error
	)
	if items, ok := v.(bson.A); ok {
		body, err = document.ToJSONArray(items)
	} else {
		body, err = document.ToJSON(v)
	}
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

// fail responds with the event tree carried by err.
func (h *Handlers) fail(c *gin.Context, err error) {
	h.failWith(c, statusFor(err), err)
}

func (h *Handlers) failWith(c *gin.Context, status int, err error) {
	h.logger.Warn("Request failed",
		log.String("path", c.FullPath()),
		log.Int("status", status),
		log.String("request_id", c.GetString(requestIDKey)),
		log.Error(err))
	respond(c, status, events.Capture(err))
}

// requireLocal rejects writes outside a local environment.
func (h *Handlers) requireLocal(c *gin.Context) {
	if err := h.cfg.AssertLocal(); err != nil {
		h.fail(c, err)
		c.Abort()
		return
	}
	c.Next()
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	h.health.ServeHTTP(c.Writer, c.Request)
}

func (h *Handlers) HandleConfig(c *gin.Context) {
	items := h.cfg.Items()
	out := make(bson.A, len(items))
	for i, item := range items {
		out[i] = item
	}
	respond(c, http.StatusOK, out)
}

func (h *Handlers) list(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc := res.service()
		files, err := svc.Store.GetDocuments(svc.Folder)
		if err != nil {
			h.fail(c, err)
			return
		}
		out := make(bson.A, len(files))
		for i, f := range files {
			out[i] = f
		}
		respond(c, http.StatusOK, out)
	}
}

func (h *Handlers) get(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := res.service().Load(c.Param("name"))
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, doc.ToDocument())
	}
}

func (h *Handlers) put(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		raw, ok := h.readBody(c)
		if !ok {
			return
		}
		doc, err := document.FromJSON(raw)
		if err != nil {
			badBody(c, name, "request body is not a JSON document", err)
			return
		}
		file, err := res.put(name, doc)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, file)
	}
}

func (h *Handlers) readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return raw, true
}

// badBody answers a request whose body cannot be stored with 400.
func badBody(c *gin.Context, name, message string, cause error) {
	event := events.New("API-01", "PARSE_BODY").Set("file_name", name)
	var data map[string]any
	if cause != nil {
		data = map[string]any{"details": cause.Error()}
	}
	_ = events.Fail(event, events.KindValidation, message, data)
	respond(c, http.StatusBadRequest, event)
}

func (h *Handlers) delete(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := res.service().Delete(c.Param("name"))
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, event)
	}
}

// lockAll locks every document of the kind, or unlocks them with ?locked=false.
func (h *Handlers) lockAll(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		locked, err := strconv.ParseBool(c.DefaultQuery("locked", "true"))
		if err != nil {
			locked = true
		}
		event, err := res.service().LockAll(locked)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, event)
	}
}

// flipLock toggles the lock flag of one document.
func (h *Handlers) flipLock(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc := res.service()
		doc, err := svc.Load(c.Param("name"))
		if err != nil {
			h.fail(c, err)
			return
		}
		doc.SetLocked(!doc.IsLocked())
		file, err := svc.Save(doc)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, file)
	}
}

func (h *Handlers) listFiles(files func() configurator.Files) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := files().List()
		if err != nil {
			h.fail(c, err)
			return
		}
		out := make(bson.A, len(list))
		for i, f := range list {
			out[i] = f
		}
		respond(c, http.StatusOK, out)
	}
}

func (h *Handlers) getFile(files func() configurator.Files) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := files().Get(c.Param("name"))
		if err != nil {
			h.fail(c, err)
			return
		}
		if v == nil {
			v = bson.D{}
		}
		respond(c, http.StatusOK, v)
	}
}

func (h *Handlers) putFile(files func() configurator.Files) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		raw, ok := h.readBody(c)
		if !ok {
			return
		}
		body, err := document.DecodeJSON(raw)
		if err != nil {
			badBody(c, name, "request body is not valid JSON", err)
			return
		}
		if body == nil {
			badBody(c, name, "request body is empty", nil)
			return
		}
		file, err := files().Put(name, body)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, file)
	}
}

func (h *Handlers) deleteFile(files func() configurator.Files) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := files().Delete(c.Param("name"))
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, event)
	}
}

// HandleCreateCollection writes the starter configuration and dictionary of a
// new collection.
func (h *Handlers) HandleCreateCollection(c *gin.Context) {
	event, err := h.svc.CreateCollection(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, event)
}

func (h *Handlers) HandleJSONSchema(c *gin.Context) {
	h.schema(c, h.svc.JSONSchema)
}

func (h *Handlers) HandleBSONSchema(c *gin.Context) {
	h.schema(c, h.svc.BSONSchema)
}

func (h *Handlers) schema(c *gin.Context, render func(name, version string) (bson.D, error)) {
	rendered, err := render(c.Param("name"), c.Param("version"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, rendered)
}

func (h *Handlers) HandleProcessAll(c *gin.Context) {
	h.process(c, "*", func(ctx context.Context) (*events.Event, error) {
		return h.svc.ProcessAll(ctx)
	})
}

func (h *Handlers) HandleProcessOne(c *gin.Context) {
	name := c.Param("name")
	h.process(c, name, func(ctx context.Context) (*events.Event, error) {
		return h.svc.ProcessOne(ctx, name)
	})
}

type processResult struct {
	event *events.Event
	err   error
}

// process collapses concurrent requests for the same target into one run.
// The run outlives a disconnecting caller.
func (h *Handlers) process(c *gin.Context, key string, run func(ctx context.Context) (*events.Event, error)) {
	ctx := context.WithoutCancel(c.Request.Context())
	v, _, shared := h.flight.Do("process:"+key, func() (any, error) {
		event, err := run(ctx)
		return processResult{event: event, err: err}, nil
	})
	result := v.(processResult)
	if shared {
		h.logger.Debug("Joined running process", log.String("target", key))
	}
	// A batch failure is a server error whatever the kind of its first cause.
	if result.err != nil {
		h.failWith(c, http.StatusInternalServerError, result.err)
		return
	}
	respond(c, http.StatusOK, result.event)
}

func (h *Handlers) HandleDropDatabase(c *gin.Context) {
	event, err := h.svc.DropDatabase(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, event)
}
