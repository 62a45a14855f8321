// Package frontend wires the router, the views and the optional counter
// backend into a runnable front.App.
package frontend

import (
	"embed"
	"io/fs"
	"net"
	"strings"

	"github.com/ryanhamamura/front"
	"github.com/ryanhamamura/front/backend"
	"github.com/ryanhamamura/front/counter"
	"github.com/ryanhamamura/front/h"
	"github.com/ryanhamamura/front/route"
)

// Config assembles an application.
type Config struct {
	Options front.Options

	// APIBaseURL is where the counter endpoint lives. Empty means this
	// server, see APIBase.
	APIBaseURL string

	// Store, if set, is served at POST /api/counter on this server.
	Store backend.Store
}

// New returns an App ready to Start.
func New(cfg Config) *front.App {
	app := front.New()
	opts := cfg.Options
	opts.Plugins = append([]front.Plugin{Styles, Navigation}, opts.Plugins...)
	app.Config(opts)

	if cfg.Store != nil {
		app.HTTPServeMux().Handle("POST "+counter.Endpoint, backend.Handler(cfg.Store, app.Logger()))
	}

	base := cfg.APIBaseURL
	if base == "" {
		base = APIBase(app.ServerAddress())
	}
	logger := app.Logger()
	logger.Info().Str("api", base+counter.Endpoint).Msg("counter endpoint")
	app.Switch(Switch(counter.NewClient(base)))
	return app
}

// Switch renders Home, Counter and NotFound. The counter view loads through
// api.
func Switch(api counter.Fetcher) front.SwitchFunc {
	counterView := counter.Component(api)
	return func(c *front.Context, r route.Route) {
		switch r {
		case route.Home:
			c.View(func() h.H { return h.H1(h.Text("Home")) })
		case route.Counter:
			counterView(c)
		default:
			c.View(func() h.H { return h.H1(h.Text("404")) })
		}
	}
}

// Navigation is a plugin that adds links to every page. They sit outside
// the routed view, so they stay in place while views are swapped.
func Navigation(v *front.App) {
	v.AppendToFoot(h.Footer(h.Nav(h.Ul(
		h.Li(front.Link(route.Home.Path(), h.Text("Home"))),
		h.Li(front.Link(route.Counter.Path(), h.Text("Counter"))),
	))))
}

// APIBase derives the URL of this server from a listen address such as
// ":3000" or "0.0.0.0:3000".
func APIBase(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + strings.TrimPrefix(addr, "http://")
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

//go:embed static
var staticFiles embed.FS

// Styles is a plugin that serves the stylesheet under /static/ and links it
// from every page.
func Styles(v *front.App) {
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	v.StaticFS("/static/", assets)
	v.AppendToHead(h.Link(h.Rel("stylesheet"), h.Href("/static/style.css")))
}
