package front

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ryanhamamura/front/h"
	"github.com/ryanhamamura/front/route"
)

// Link renders an anchor to an internal path. Clicks are intercepted and
// handled over the live connection: the router swaps the view in place and a
// history entry is pushed, so the page is never reloaded. Without JS the
// anchor still works as a plain link.
//
// Example:
//
//	front.Link("/counter", h.Text("Counter"))
func Link(href string, children ...h.H) h.H {
	attrs := []h.H{
		h.Href(href),
		h.Data("on:click__prevent", fmt.Sprintf("@get('/_navigate%s')", href)),
	}
	return h.A(append(attrs, children...)...)
}

func (v *App) navigateHandler(push bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := v.contextFromSignals(w, r)
		if !ok {
			return
		}
		if c.navLimiter != nil && !c.navLimiter.Allow() {
			v.logWarn(c, "navigation rate limited")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		path := "/" + r.PathValue("path")
		if err := c.navigate(path, push); err != nil {
			v.logErr(c, "navigate to %s failed: %v", path, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

// navigate mounts the view for path in place of the current one and pushes
// the result to the browser.
func (c *Context) navigate(path string, push bool) error {
	r := route.Match(path)
	c.app.logDebug(c, "navigate to %s (%s)", path, r)
	if err := c.mountRoute(r); err != nil {
		return err
	}
	c.Sync()
	if push {
		c.ExecScript(fmt.Sprintf("window.history.pushState({}, '', %s)", strconv.Quote(path)))
	}
	c.mountOutlet()
	return nil
}
