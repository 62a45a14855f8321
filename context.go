package front

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/ryanhamamura/front/h"
	"github.com/ryanhamamura/front/route"
	"golang.org/x/time/rate"
)

const patchBufferSize = 16

// Context is the living bridge between Go and the browser.
//
// A page Context exists per browser tab. It owns the SSE stream and an
// outlet: the child Context of the view currently selected by the router.
// View state lives in the closure passed to the switch and dies with the
// outlet when the user navigates away.
type Context struct {
	id              string
	route           route.Route
	app             *App
	view            func() h.H
	parentPageCtx   *Context
	outlet          *Context
	patchChan       chan patch
	mu              sync.RWMutex
	ctxDisposedChan chan struct{}
	disposeOnce     sync.Once
	csrfToken       string
	navLimiter      *rate.Limiter
	createdAt       time.Time
	sseConnected    atomic.Bool
	mountCtx        context.Context
	unmount         context.CancelFunc
	mountHooks      []func(ctx context.Context)
	mountOnce       sync.Once
}

// View defines the UI rendered by this context.
// The function should return an h.H element (from front/h).
//
// Changes to state can be pushed live with Sync().
func (c *Context) View(f func() h.H) {
	if f == nil {
		panic("nil viewfn")
	}
	c.view = func() h.H { return h.Div(h.ID(c.id), f()) }
}

// OnMount registers fn to run once, asynchronously, after the view is first
// rendered. ctx is cancelled when the view is unmounted, so work started by
// fn must watch it; updates pushed after unmount are dropped.
//
// Example:
//
//	var n int
//	c.OnMount(func(ctx context.Context) {
//		n = load(ctx)
//		c.Sync()
//	})
func (c *Context) OnMount(fn func(ctx context.Context)) {
	if fn == nil {
		c.app.logErr(c, "failed to register mount hook: nil func")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mountHooks = append(c.mountHooks, fn)
}

// Context returns the lifetime of the view: it is cancelled on unmount.
func (c *Context) Context() context.Context {
	return c.mountCtx
}

// Mounted reports whether the view is still attached to its page.
func (c *Context) Mounted() bool {
	return c.mountCtx.Err() == nil
}

// Route returns the route this context renders.
func (c *Context) Route() route.Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.route
}

// Logger returns the application logger scoped to this context.
func (c *Context) Logger() zerolog.Logger {
	l := c.app.logger.With().Str("route", c.Route().String())
	if c.id != "" {
		l = l.Str("front-ctx", c.id)
	}
	return l.Logger()
}

func (c *Context) isOutlet() bool {
	return c.parentPageCtx != nil
}

// mountRoute replaces the outlet with a fresh view for r. The previous view
// is unmounted. Mount hooks of the new view are started by mountOutlet once
// the caller has rendered it.
func (c *Context) mountRoute(r route.Route) (err error) {
	out := newContext(c.id+"/_route/"+genRandID(), r, c.app)
	out.parentPageCtx = c

	defer func() {
		if rec := recover(); rec != nil {
			out.unmountView()
			err = fmt.Errorf("switch panicked on route %s: %v", r, rec)
		}
	}()
	c.app.switchFn(out, r)
	if out.view == nil {
		panic("switch did not set a view")
	}

	c.mu.Lock()
	prev := c.outlet
	c.outlet = out
	c.route = r
	if c.view == nil {
		c.view = func() h.H {
			return h.Div(h.ID(c.id),
				h.Data("on:popstate__window", "@get('/_popstate' + window.location.pathname)"),
				c.currentOutlet().view(),
			)
		}
	}
	c.mu.Unlock()

	if prev != nil {
		c.app.logDebug(prev, "unmounting view")
		prev.unmountView()
	}
	return nil
}

func (c *Context) currentOutlet() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outlet
}

func (c *Context) mountOutlet() {
	if out := c.currentOutlet(); out != nil {
		out.mount()
	}
}

func (c *Context) mount() {
	c.mountOnce.Do(func() {
		c.mu.RLock()
		hooks := slices.Clone(c.mountHooks)
		c.mu.RUnlock()
		for _, fn := range hooks {
			go c.runMountHook(fn)
		}
	})
}

func (c *Context) runMountHook(fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			c.app.logErr(c, "mount hook failed: %v", r)
		}
	}()
	fn(c.mountCtx)
}

func (c *Context) unmountView() {
	c.unmount()
}

func (c *Context) getPatchChan() chan patch {
	// outlets use the page sse stream
	if c.isOutlet() {
		return c.parentPageCtx.patchChan
	}
	return c.patchChan
}

// sendPatch queues a patch on this *Context sse stream. If the view is unmounted,
// the sse is closed or the queue is full, the patch is dropped to prevent runtime blocks.
func (c *Context) sendPatch(p patch) {
	if c.isOutlet() {
		// hold the page lock so the outlet cannot be swapped between the
		// check and the send
		page := c.parentPageCtx
		page.mu.RLock()
		defer page.mu.RUnlock()
		if page.outlet != c {
			c.app.logDebug(c, "dropping patch for replaced view")
			return
		}
	}
	if !c.Mounted() {
		c.app.logDebug(c, "dropping patch for unmounted view")
		return
	}
	select {
	case c.getPatchChan() <- p:
	default: // closed or buffer full - drop patch without blocking
	}
}

// Sync pushes the current view to the browser immediately over the live
// SSE event stream.
func (c *Context) Sync() {
	if c.view == nil {
		return
	}
	elemsPatch := bytes.NewBuffer(make([]byte, 0))
	if err := c.view().Render(elemsPatch); err != nil {
		c.app.logErr(c, "sync view failed: %v", err)
		return
	}
	c.sendPatch(patch{patchTypeElements, elemsPatch.String()})
}

func (c *Context) ExecScript(s string) {
	if s == "" {
		c.app.logWarn(c, "exec script failed: empty script")
		return
	}
	c.sendPatch(patch{patchTypeScript, s})
}

// dispose unmounts the outlet and the page and stops the SSE loop.
func (c *Context) dispose() {
	c.disposeOnce.Do(func() {
		if out := c.currentOutlet(); out != nil {
			out.unmountView()
		}
		c.unmountView()
		close(c.ctxDisposedChan)
	})
}

func newContext(id string, r route.Route, v *App) *Context {
	if v == nil {
		log.Fatal("create context failed: app pointer is nil")
	}

	mountCtx, unmount := context.WithCancel(context.Background())
	return &Context{
		id:              id,
		route:           r,
		app:             v,
		patchChan:       make(chan patch, patchBufferSize),
		ctxDisposedChan: make(chan struct{}),
		csrfToken:       genCSRFToken(),
		navLimiter:      newLimiter(v.navRateLimit, defaultNavigationRate, defaultNavigationBurst),
		createdAt:       time.Now(),
		mountCtx:        mountCtx,
		unmount:         unmount,
	}
}
