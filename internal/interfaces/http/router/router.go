// Package router mounts the invoicing API resources on a gin engine.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route is one endpoint of a resource. Path is relative to the resource prefix.
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

func GET(p string, h gin.HandlerFunc) Route  { return Route{http.MethodGet, p, h} }
func POST(p string, h gin.HandlerFunc) Route { return Route{http.MethodPost, p, h} }
func PUT(p string, h gin.HandlerFunc) Route  { return Route{http.MethodPut, p, h} }

// Resource groups routes under one prefix behind shared middleware.
// Routes are registered in order, so a static segment listed before a
// parameter wins.
type Resource struct {
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// Mount registers every resource under /api/<version> and returns that group
func Mount(engine gin.IRouter, version string, resources ...Resource) *gin.RouterGroup {
	api := engine.Group("/api/" + version)
	for _, res := range resources {
		group := api.Group(res.Prefix)
		for _, mw := range res.Middleware {
			if mw != nil {
				group.Use(mw)
			}
		}
		for _, rt := range res.Routes {
			group.Handle(rt.Method, rt.Path, rt.Handler)
		}
	}
	return api
}

// Endpoints lists "METHOD /api/<version>/path" for every route, in mount order
func Endpoints(version string, resources ...Resource) []string {
	var out []string
	for _, res := range resources {
		for _, rt := range res.Routes {
			out = append(out, rt.Method+" "+path.Join("/api", version, res.Prefix, rt.Path))
		}
	}
	return out
}
