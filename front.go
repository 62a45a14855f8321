// Package front is the application shell of the counter front-end. It
// matches the browser location to a route, renders the selected view on the
// server and keeps it live in the browser over a Datastar SSE stream.
//
// Views own their state and lifecycle through a *Context: a view is mounted
// when its page is first served or when the user navigates to it, and
// unmounted when the user navigates away, closes the tab or the connection
// is lost.
package front

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/ryanhamamura/front/h"
	"github.com/ryanhamamura/front/route"
	"github.com/starfederation/datastar-go/datastar"
)

// DatastarCDN is the script referenced by pages when no DatastarContent is
// configured.
const DatastarCDN = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// SwitchFunc renders the view for route r into c. It must call c.View.
type SwitchFunc func(c *Context, r route.Route)

// App is the root application.
// It manages routing, page contexts and SSE connections for live updates.
type App struct {
	cfg                  Options
	mux                  *http.ServeMux
	server               *http.Server
	logger               zerolog.Logger
	contextRegistry      map[string]*Context
	contextRegistryMutex sync.RWMutex
	documentHeadIncludes []h.H
	documentFootIncludes []h.H
	switchFn             SwitchFunc
	navRateLimit         RateLimitConfig
	datastarPath         string
	datastarContent      []byte
	datastarOnce         sync.Once
	reaperStop           chan struct{}
}

func (v *App) logEvent(evt *zerolog.Event, c *Context) *zerolog.Event {
	if c != nil && c.id != "" {
		evt = evt.Str("front-ctx", c.id)
	}
	return evt
}

func (v *App) logFatal(format string, a ...any) {
	v.logEvent(v.logger.WithLevel(zerolog.FatalLevel), nil).Msgf(format, a...)
}

func (v *App) logErr(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Error(), c).Msgf(format, a...)
}

func (v *App) logWarn(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Warn(), c).Msgf(format, a...)
}

func (v *App) logInfo(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Info(), c).Msgf(format, a...)
}

func (v *App) logDebug(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Debug(), c).Msgf(format, a...)
}

func newConsoleLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)
}

// Config overrides the default configuration with the given options.
func (v *App) Config(cfg Options) {
	if cfg.Logger != nil {
		v.logger = *cfg.Logger
	} else if cfg.LogLevel != nil || cfg.DevMode != v.cfg.DevMode {
		level := zerolog.InfoLevel
		if cfg.LogLevel != nil {
			level = *cfg.LogLevel
		}
		if cfg.DevMode {
			v.logger = newConsoleLogger(level)
		} else {
			v.logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		}
	}
	if cfg.DocumentTitle != "" {
		v.cfg.DocumentTitle = cfg.DocumentTitle
	}
	if cfg.Plugins != nil {
		for _, plugin := range cfg.Plugins {
			if plugin != nil {
				plugin(v)
			}
		}
	}
	if cfg.DevMode != v.cfg.DevMode {
		v.cfg.DevMode = cfg.DevMode
	}
	if cfg.ServerAddress != "" {
		v.cfg.ServerAddress = cfg.ServerAddress
	}
	if cfg.DatastarContent != nil {
		v.datastarContent = cfg.DatastarContent
	}
	if cfg.DatastarPath != "" {
		v.datastarPath = cfg.DatastarPath
	}
	if cfg.ContextTTL != 0 {
		v.cfg.ContextTTL = cfg.ContextTTL
	}
	if cfg.NavigationRateLimit.Rate != 0 || cfg.NavigationRateLimit.Burst != 0 {
		v.navRateLimit = cfg.NavigationRateLimit
	}
}

// Logger returns the application logger.
func (v *App) Logger() zerolog.Logger {
	return v.logger
}

// ServerAddress returns the configured listen address.
func (v *App) ServerAddress() string {
	return v.cfg.ServerAddress
}

// AppendToHead appends the given h.H nodes to the head of the base HTML document.
// Useful for including css stylesheets and JS scripts.
func (v *App) AppendToHead(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentHeadIncludes = append(v.documentHeadIncludes, el)
		}
	}
}

// AppendToFoot appends the given h.H nodes to the end of the base HTML document body.
// Useful for including JS scripts.
func (v *App) AppendToFoot(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentFootIncludes = append(v.documentFootIncludes, el)
		}
	}
}

// Switch registers the function that renders a view for each route and
// starts serving pages for every GET path. Mount hooks are not run during
// registration.
//
// Example:
//
//	v.Switch(func(c *front.Context, r route.Route) {
//		switch r {
//		case route.Home:
//			c.View(func() h.H { return h.H1(h.Text("Home")) })
//		default:
//			c.View(func() h.H { return h.H1(h.Text("404")) })
//		}
//	})
func (v *App) Switch(fn SwitchFunc) {
	if fn == nil {
		panic("nil switch func")
	}
	if v.switchFn != nil {
		panic("switch func already registered")
	}
	v.ensureDatastarHandler()
	// check for panics
	for _, r := range route.All {
		func() {
			defer func() {
				if err := recover(); err != nil {
					v.logFatal("failed to register switch that panics on route %s: %v", r, err)
					panic(err)
				}
			}()
			c := newContext("", r, v)
			fn(c, r)
			c.view()
			c.dispose()
		}()
	}
	v.switchFn = fn

	v.mux.HandleFunc("GET /{path...}", v.servePage)
}

func (v *App) servePage(w http.ResponseWriter, r *http.Request) {
	v.logDebug(nil, "GET %s", r.URL.String())
	if r.URL.Path == "/favicon.ico" ||
		strings.HasPrefix(r.URL.Path, "/.well-known/") ||
		strings.HasSuffix(r.URL.Path, ".js.map") {
		http.NotFound(w, r)
		return
	}
	rt := route.Match(r.URL.Path)
	c := newContext(genRandID(), rt, v)
	if err := c.mountRoute(rt); err != nil {
		v.logErr(c, "render %s failed: %v", r.URL.Path, err)
		c.dispose()
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	v.registerCtx(c)

	var datastarSrc = DatastarCDN
	if v.datastarContent != nil {
		datastarSrc = v.datastarPath
	}
	headElements := []h.H{h.Script(h.Type("module"), h.Src(datastarSrc))}
	headElements = append(headElements, v.documentHeadIncludes...)
	headElements = append(headElements,
		h.Meta(h.Data("signals", fmt.Sprintf("{'front-ctx':'%s','front-csrf':'%s'}", c.id, c.csrfToken))),
		h.Meta(h.Data("init", "@get('/_sse')")),
		h.Meta(h.Data("init", fmt.Sprintf(`window.addEventListener('beforeunload', (evt) => {
			navigator.sendBeacon('/_session/close', '%s');});`, c.id))),
	)

	bodyElements := []h.H{c.view()}
	bodyElements = append(bodyElements, v.documentFootIncludes...)
	view := h.HTML5(h.HTML5Props{
		Title:     v.cfg.DocumentTitle,
		Head:      headElements,
		Body:      bodyElements,
		HTMLAttrs: []h.H{},
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if rt == route.NotFound {
		w.WriteHeader(http.StatusNotFound)
	}
	if err := view.Render(w); err != nil {
		v.logErr(c, "render document failed: %v", err)
	}
	c.mountOutlet()
}

func (v *App) registerCtx(c *Context) {
	v.contextRegistryMutex.Lock()
	defer v.contextRegistryMutex.Unlock()
	if c == nil {
		v.logErr(c, "failed to add nil context to registry")
		return
	}
	v.contextRegistry[c.id] = c
	v.logDebug(c, "new context added to registry")
	v.logDebug(nil, "number of sessions in registry: %d", v.currSessionNum())
}

func (v *App) currSessionNum() int {
	return len(v.contextRegistry)
}

func (v *App) cleanupCtx(c *Context) {
	c.dispose()
	v.unregisterCtx(c)
}

func (v *App) unregisterCtx(c *Context) {
	if c.id == "" {
		v.logErr(c, "unregister ctx failed: ctx contains empty id")
		return
	}
	v.contextRegistryMutex.Lock()
	defer v.contextRegistryMutex.Unlock()
	v.logDebug(c, "ctx removed from registry")
	delete(v.contextRegistry, c.id)
	v.logDebug(nil, "number of sessions in registry: %d", v.currSessionNum())
}

func (v *App) getCtx(id string) (*Context, error) {
	v.contextRegistryMutex.RLock()
	defer v.contextRegistryMutex.RUnlock()
	if c, ok := v.contextRegistry[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("ctx '%s' not found", id)
}

func (v *App) startReaper() {
	ttl := v.cfg.ContextTTL
	if ttl < 0 {
		return
	}
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	interval := ttl / 3
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	v.reaperStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-v.reaperStop:
				return
			case <-ticker.C:
				v.reapOrphanedContexts(ttl)
			}
		}
	}()
}

func (v *App) reapOrphanedContexts(ttl time.Duration) {
	now := time.Now()
	v.contextRegistryMutex.RLock()
	var orphans []*Context
	for _, c := range v.contextRegistry {
		if !c.sseConnected.Load() && now.Sub(c.createdAt) > ttl {
			orphans = append(orphans, c)
		}
	}
	v.contextRegistryMutex.RUnlock()

	for _, c := range orphans {
		v.logInfo(c, "reaping orphaned context (no SSE connection after %s)", ttl)
		v.cleanupCtx(c)
	}
}

// Start starts the HTTP server and blocks until a SIGINT or SIGTERM
// signal is received, then performs a graceful shutdown.
func (v *App) Start() {
	v.server = &http.Server{
		Addr:    v.cfg.ServerAddress,
		Handler: v.mux,
	}

	v.startReaper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- v.server.ListenAndServe()
	}()

	v.logInfo(nil, "front started at [%s]", v.cfg.ServerAddress)

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		v.logInfo(nil, "received signal %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			v.logger.Fatal().Err(err).Msg("http server failed")
		}
		return
	}

	v.shutdown()
}

// Shutdown gracefully shuts down the server and all contexts.
// Safe for programmatic or test use.
func (v *App) Shutdown() {
	v.shutdown()
}

func (v *App) shutdown() {
	if v.reaperStop != nil {
		close(v.reaperStop)
		v.reaperStop = nil
	}
	v.logInfo(nil, "draining all contexts")
	v.drainAllContexts()

	if v.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.server.Shutdown(ctx); err != nil {
			v.logErr(nil, "http server shutdown error: %v", err)
		}
	}

	v.logInfo(nil, "shutdown complete")
}

func (v *App) drainAllContexts() {
	v.contextRegistryMutex.Lock()
	contexts := make([]*Context, 0, len(v.contextRegistry))
	for _, c := range v.contextRegistry {
		contexts = append(contexts, c)
	}
	v.contextRegistry = make(map[string]*Context)
	v.contextRegistryMutex.Unlock()

	for _, c := range contexts {
		v.logDebug(c, "disposing context")
		c.dispose()
	}
	v.logInfo(nil, "drained %d context(s)", len(contexts))
}

// HTTPServeMux returns the underlying HTTP request multiplexer to enable user extentions, middleware and
// plugins.
//
// IMPORTANT. The returned *http.ServeMux can only be modified during initialization, before calling Start().
// Concurrent handler registration is not safe.
func (v *App) HTTPServeMux() *http.ServeMux {
	return v.mux
}

func (v *App) ensureDatastarHandler() {
	v.datastarOnce.Do(func() {
		if v.datastarContent == nil {
			return
		}
		v.mux.HandleFunc("GET "+v.datastarPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write(v.datastarContent)
		})
	})
}

// contextFromSignals resolves the page context and verifies its CSRF token.
func (v *App) contextFromSignals(w http.ResponseWriter, r *http.Request) (*Context, bool) {
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs["front-ctx"].(string)
	c, err := v.getCtx(cID)
	if err != nil {
		v.logErr(nil, "%s failed: %v", r.URL.Path, err)
		http.Error(w, "unknown context", http.StatusNotFound)
		return nil, false
	}
	csrfToken, _ := sigs["front-csrf"].(string)
	if subtle.ConstantTimeCompare([]byte(csrfToken), []byte(c.csrfToken)) != 1 {
		v.logWarn(c, "%s rejected: invalid CSRF token", r.URL.Path)
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return nil, false
	}
	return c, true
}

type patchType int

const (
	patchTypeElements = iota
	patchTypeScript
)

type patch struct {
	typ     patchType
	content string
}

// New creates a new *App with default configuration.
func New() *App {
	mux := http.NewServeMux()

	v := &App{
		mux:             mux,
		logger:          newConsoleLogger(zerolog.InfoLevel),
		contextRegistry: make(map[string]*Context),
		datastarPath:    "/_datastar.js",
		cfg: Options{
			DevMode:       false,
			ServerAddress: ":3000",
			DocumentTitle: "Front",
		},
	}

	v.mux.HandleFunc("GET /_sse", func(w http.ResponseWriter, r *http.Request) {
		var sigs map[string]any
		_ = datastar.ReadSignals(r, &sigs)
		cID, _ := sigs["front-ctx"].(string)

		c, err := v.getCtx(cID)
		if err != nil {
			v.logErr(nil, "sse stream failed to start: %v", err)
			return
		}

		sse := datastar.NewSSE(w, r, datastar.WithCompression(datastar.WithBrotli(datastar.WithBrotliLevel(5))))

		// use last-event-id to tell if request is a sse reconnect
		sse.Send(datastar.EventTypePatchElements, []string{}, datastar.WithSSEEventId("front"))

		c.sseConnected.Store(true)
		v.logDebug(c, "SSE connection established")

		go func() {
			c.Sync()
		}()

		for {
			select {
			case <-sse.Context().Done():
				v.logDebug(c, "SSE connection ended")
				v.cleanupCtx(c)
				return
			case <-c.ctxDisposedChan:
				v.logDebug(c, "context disposed, closing SSE")
				return
			case patch := <-c.patchChan:
				switch patch.typ {
				case patchTypeElements:
					if err := sse.PatchElements(patch.content); err != nil {
						// Only log if connection wasn't closed (avoids noise during shutdown/tests)
						if sse.Context().Err() == nil {
							v.logErr(c, "PatchElements failed: %v", err)
						}
					}
				case patchTypeScript:
					if err := sse.ExecuteScript(patch.content, datastar.WithExecuteScriptAutoRemove(true)); err != nil {
						if sse.Context().Err() == nil {
							v.logErr(c, "ExecuteScript failed: %v", err)
						}
					}
				}
			}
		}
	})

	v.mux.HandleFunc("GET /_navigate/{path...}", v.navigateHandler(true))
	v.mux.HandleFunc("GET /_popstate/{path...}", v.navigateHandler(false))

	v.mux.HandleFunc("POST /_session/close", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			v.logErr(nil, "error reading body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		cID := string(body)
		c, err := v.getCtx(cID)
		if err != nil {
			v.logErr(c, "failed to handle session close: %v", err)
			return
		}
		v.logDebug(c, "session close event triggered")
		v.cleanupCtx(c)
	})
	return v
}

func genRandID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)[:8]
}

func genCSRFToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
