package http

import "github.com/labstack/echo/v4"

// Handler registers a group of routes on the server. The dashboard
// API and the metrics endpoint each implement it.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
