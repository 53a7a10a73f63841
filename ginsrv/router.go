package ginsrv

import "github.com/gin-gonic/gin"

type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// SetupRouter registers routes behind middlewares. Middlewares are applied
// in reverse order, so the last one listed runs first.
func SetupRouter(routes []Route, middlewares ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()

	for i := len(middlewares) - 1; i >= 0; i-- {
		router.Use(middlewares[i])
	}

	for _, route := range routes {
		router.Handle(route.Method, route.Path, route.Handler)
	}

	return router
}
