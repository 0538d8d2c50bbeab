package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// startHealthz runs a bare liveness endpoint alongside a consumer,
// mirroring the original's nlds/routers/probe.py: unauthenticated, no
// body, 200 while the process is up. The container orchestrator's
// readiness probe hits this, not the bus itself.
func startHealthz(addr string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	go func() {
		_ = e.Start(addr)
	}()
	return e
}

func stopHealthz(e *echo.Echo) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Shutdown(ctx)
}
