// Package route maps URL paths onto the closed set of pages the front-end
// knows how to render.
package route

// Route identifies a page. The set is closed: every path maps to exactly one
// Route, and paths without a registered pattern map to NotFound.
type Route int

const (
	Home Route = iota
	Counter
	NotFound
)

// All lists every route in declaration order.
var All = []Route{Home, Counter, NotFound}

// Match returns the Route for path. It never fails.
//
// Patterns are exact: "/counter/" and "/counter?x" (the raw query must be
// stripped by the caller) are NotFound.
func Match(path string) Route {
	switch path {
	case "/":
		return Home
	case "/counter":
		return Counter
	default:
		return NotFound
	}
}

// Path returns the canonical path for r.
func (r Route) Path() string {
	switch r {
	case Home:
		return "/"
	case Counter:
		return "/counter"
	default:
		return "/404"
	}
}

func (r Route) String() string {
	switch r {
	case Home:
		return "home"
	case Counter:
		return "counter"
	default:
		return "not-found"
	}
}
