// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compass/internal/http/handlers"
	"compass/internal/http/middleware"
	"compass/internal/infra"
	"compass/internal/modules/controller"
)

type RouterDeps struct {
	Sessions *controller.Manager
	Stream   handlers.EventStream
	// Verifier is nil in dev mode.
	Verifier infra.TokenVerifier
	Version  string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Stream, deps.Version)
	routeHandler := handlers.NewRouteHandler(deps.Sessions)
	locationHandler := handlers.NewLocationHandler(deps.Sessions)
	searchHandler := handlers.NewSearchHandler(deps.Sessions)

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	api.GET("/about", sessionHandler.About)
	api.POST("/sessions", sessionHandler.Create)

	s := api.Group("/sessions/:id")
	s.GET("", sessionHandler.Get)
	s.DELETE("", sessionHandler.Close)
	s.GET("/events", sessionHandler.Events)

	s.POST("/press", routeHandler.Press)
	s.POST("/route", routeHandler.Route)
	s.DELETE("/route", routeHandler.Delete)
	s.POST("/route/start-here", routeHandler.StartHere)
	s.POST("/route/end-here", routeHandler.EndHere)
	s.POST("/route/reverse", routeHandler.Reverse)
	s.PUT("/route/profile", routeHandler.SetProfile)
	s.GET("/route/geojson", routeHandler.GeoJSON)
	s.GET("/route/history", routeHandler.History)

	s.POST("/fixes", locationHandler.Fix)
	s.POST("/fix-errors", locationHandler.FixError)
	s.POST("/navigation/start", locationHandler.StartNavigation)
	s.POST("/navigation/stop", locationHandler.StopNavigation)
	s.POST("/location/show", locationHandler.ShowLocation)
	s.POST("/location/hide", locationHandler.HideLocation)
	s.POST("/tracking/start", locationHandler.StartTracking)
	s.POST("/tracking/stop", locationHandler.StopTracking)

	s.POST("/pins", searchHandler.InsertPin)
	s.DELETE("/pins/:pinID", searchHandler.DeletePin)
	s.POST("/find", searchHandler.Find)
	s.POST("/find-address", searchHandler.FindAddress)
	s.POST("/found/:index", searchHandler.ChooseFound)
	s.PUT("/options", searchHandler.SetOptions)

	return r
}
