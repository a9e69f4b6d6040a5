package http

import "github.com/labstack/echo/v4"

// Handler registers an API surface on the server's Echo instance. The server
// owns middleware and the /metrics route; handlers own everything else.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
