package server

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the configurator endpoints on rg, typically /api.
//
//	GET    /health                                  Prometheus metrics
//	GET    /config                                  configuration items and their sources
//	DELETE /database                                drop the database
//	POST   /configurations                          process every configuration
//	POST   /configurations/:name                    process one configuration
//	GET    /configurations/json_schema/:name/:version
//	GET    /configurations/bson_schema/:name/:version
//	POST   /configurations/collection/:name         create a collection from templates
//
// Each of configurations, dictionaries, types and enumerators also has
//
//	GET    /<kind>          list files
//	PATCH  /<kind>          lock all, ?locked=false unlocks
//	GET    /<kind>/:name    read
//	PUT    /<kind>/:name    validate and save
//	DELETE /<kind>/:name    delete unless locked
//	PATCH  /<kind>/:name    flip the lock flag
//
// migrations and test_data hold plain JSON files without a lock flag
//
//	GET    /<folder>
//	GET    /<folder>/:name
//	PUT    /<folder>/:name
//	DELETE /<folder>/:name
//
// Every write is refused outside a local environment.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/health", h.HandleHealth)
	rg.GET("/config", h.HandleConfig)
	rg.DELETE("/database", h.requireLocal, h.HandleDropDatabase)

	for kind, res := range h.resources() {
		group := rg.Group("/" + kind)
		group.GET("", h.list(res))
		group.PATCH("", h.requireLocal, h.lockAll(res))
		group.GET("/:name", h.get(res))
		group.PUT("/:name", h.requireLocal, h.put(res))
		group.DELETE("/:name", h.requireLocal, h.delete(res))
		group.PATCH("/:name", h.requireLocal, h.flipLock(res))
	}

	for folder, files := range h.files() {
		group := rg.Group("/" + folder)
		group.GET("", h.listFiles(files))
		group.GET("/:name", h.getFile(files))
		group.PUT("/:name", h.requireLocal, h.putFile(files))
		group.DELETE("/:name", h.requireLocal, h.deleteFile(files))
	}

	configurations := rg.Group("/configurations")
	configurations.POST("", h.HandleProcessAll)
	configurations.POST("/:name", h.HandleProcessOne)
	configurations.POST("/collection/:name", h.requireLocal, h.HandleCreateCollection)
	configurations.GET("/json_schema/:name/:version", h.HandleJSONSchema)
	configurations.GET("/bson_schema/:name/:version", h.HandleBSONSchema)
}
