// Package counter implements the view that loads the counter value from the
// backend once per mount and displays it.
package counter

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/ryanhamamura/front"
	"github.com/ryanhamamura/front/h"
)

// State is either Unloaded (the zero value) or Loaded with a value.
type State struct {
	loaded bool
	value  uint32
}

// Unloaded is the state before a successful fetch.
var Unloaded = State{}

// Loaded returns the state holding v.
func Loaded(v uint32) State {
	return State{loaded: true, value: v}
}

// Value returns the loaded value and whether the state is loaded.
func (s State) Value() (uint32, bool) {
	return s.value, s.loaded
}

// Text is the decimal value when loaded and "" otherwise.
func (s State) Text() string {
	if !s.loaded {
		return ""
	}
	return strconv.FormatUint(uint64(s.value), 10)
}

// View owns the state of one mounted counter view.
type View struct {
	fetcher Fetcher
	logger  zerolog.Logger

	loading sync.Mutex // held for the whole fetch, so at most one is in flight
	mu      sync.Mutex
	state   State
}

// NewView returns an Unloaded view that loads through f.
func NewView(f Fetcher, logger zerolog.Logger) *View {
	return &View{fetcher: f, logger: logger}
}

// State returns the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Load fetches the counter unless the view is already Loaded and reports
// whether the state changed. Failures are logged and leave the view
// Unloaded.
func (v *View) Load(ctx context.Context) bool {
	v.loading.Lock()
	defer v.loading.Unlock()
	if _, loaded := v.State().Value(); loaded {
		return false
	}

	count, err := v.fetcher.Fetch(ctx)
	if err != nil {
		v.logFailure(err)
		return false
	}
	v.mu.Lock()
	v.state = Loaded(count)
	v.mu.Unlock()
	return true
}

func (v *View) logFailure(err error) {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		v.logger.Error().Int("status", statusErr.Code).
			Msgf("Error fetching data %d (%s)", statusErr.Code, statusErr.Text)
	case errors.Is(err, ErrNotANumber):
		v.logger.Error().Err(err).Msg("Data is not a number")
	case errors.Is(err, context.Canceled):
		v.logger.Debug().Err(err).Msg("fetch abandoned, view unmounted")
	default:
		v.logger.Error().Err(err).Msg("Error fetching data")
	}
}

// Render draws the value, or nothing while Unloaded.
func (v *View) Render() h.H {
	return h.Div(h.Div(h.Text(v.State().Text())))
}

// Component returns the init func that mounts a counter view on a
// front.Context. Each call of the returned func creates a fresh View, so
// every mount starts Unloaded.
func Component(f Fetcher) func(c *front.Context) {
	return func(c *front.Context) {
		view := NewView(f, c.Logger())
		c.View(view.Render)
		c.OnMount(func(ctx context.Context) {
			if view.Load(ctx) {
				c.Sync()
			}
		})
	}
}
