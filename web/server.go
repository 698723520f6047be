package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"
)

//go:embed views
var viewsFS embed.FS

// ViewsFS returns the embedded templates rooted at the views directory.
func ViewsFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewViewEngine returns a django engine over the embedded templates.
func NewViewEngine(reload bool) *django.Engine {
	engine := django.NewFileSystem(http.FS(ViewsFS()), ".html")
	engine.Reload(reload)
	return engine
}

type ServerConfig struct {
	Debug bool
}

// NewServer builds a fiber backed router server with the controller routes
// registered.
func NewServer(c *Controller, cfg ServerConfig) router.Server[*fiber.App] {
	engine := NewViewEngine(cfg.Debug)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			EnablePrintRoutes:     cfg.Debug,
			DisableStartupMessage: !cfg.Debug,
			StrictRouting:         false,
			PassLocalsToViews:     true,
			Views:                 engine,
		}))
	})

	if c.CSRF != nil {
		srv.Router().Use(c.CSRF.Middleware())
	}

	RegisterRoutes(srv.Router(), c)

	return srv
}
