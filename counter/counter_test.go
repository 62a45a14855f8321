package counter

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/ryanhamamura/front"
	"github.com/ryanhamamura/front/h"
	"github.com/ryanhamamura/front/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context) (uint32, error)

func (f fetchFunc) Fetch(ctx context.Context) (uint32, error) { return f(ctx) }

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func newTestView(f Fetcher) (*View, *syncBuffer) {
	logs := &syncBuffer{}
	return NewView(f, zerolog.New(logs)), logs
}

func rendered(t *testing.T, v *View) string {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, v.Render().Render(&b))
	return b.String()
}

func TestState(t *testing.T) {
	_, ok := Unloaded.Value()
	assert.False(t, ok)
	assert.Equal(t, "", Unloaded.Text())
	assert.Equal(t, Unloaded, State{})

	n, ok := Loaded(7).Value()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), n)
	assert.Equal(t, "7", Loaded(7).Text())
	assert.Equal(t, "0", Loaded(0).Text())
}

func TestViewLoad_Success(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("42"))
	})
	v, _ := newTestView(cl)
	assert.Equal(t, "<div><div></div></div>", rendered(t, v))

	changed := v.Load(context.Background())

	assert.True(t, changed)
	assert.Equal(t, Loaded(42), v.State())
	assert.Equal(t, "<div><div>42</div></div>", rendered(t, v))
}

func TestViewLoad_StatusFailure(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	v, logs := newTestView(cl)

	changed := v.Load(context.Background())

	assert.False(t, changed)
	assert.Equal(t, Unloaded, v.State())
	assert.Equal(t, "<div><div></div></div>", rendered(t, v))
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "Error fetching data 500 (Internal Server Error)")
}

func TestViewLoad_NotANumber(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not-a-number"))
	})
	v, logs := newTestView(cl)

	changed := v.Load(context.Background())

	assert.False(t, changed)
	assert.Equal(t, Unloaded, v.State())
	assert.Equal(t, "<div><div></div></div>", rendered(t, v))
	assert.Contains(t, logs.String(), "Data is not a number")
	assert.Contains(t, logs.String(), `invalid syntax`)
}

func TestViewLoad_ReadFailure(t *testing.T) {
	v, logs := newTestView(fetchFunc(func(ctx context.Context) (uint32, error) {
		return 0, errors.Join(ErrReadBody, errors.New("connection reset"))
	}))

	assert.False(t, v.Load(context.Background()))
	assert.Equal(t, Unloaded, v.State())
	assert.Contains(t, logs.String(), "Error fetching data")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestViewLoad_OnceLoadedNeverFetchesAgain(t *testing.T) {
	var calls atomic.Int32
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("1"))
	})
	v, _ := newTestView(cl)

	assert.True(t, v.Load(context.Background()))
	assert.False(t, v.Load(context.Background()))
	assert.False(t, v.Load(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Loaded(1), v.State())
}

func TestViewLoad_RetriesWhileUnloaded(t *testing.T) {
	var calls atomic.Int32
	v, _ := newTestView(fetchFunc(func(ctx context.Context) (uint32, error) {
		if calls.Add(1) == 1 {
			return 0, &StatusError{Code: 502, Text: "Bad Gateway"}
		}
		return 9, nil
	}))

	assert.False(t, v.Load(context.Background()))
	assert.True(t, v.Load(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, Loaded(9), v.State())
}

func TestViewLoad_ConcurrentCallsFetchOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	v, _ := newTestView(fetchFunc(func(ctx context.Context) (uint32, error) {
		calls.Add(1)
		<-release
		return 5, nil
	}))

	var wg sync.WaitGroup
	var changed atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.Load(context.Background()) {
				changed.Add(1)
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	// rendering must not wait for the fetch
	assert.Equal(t, "<div><div></div></div>", rendered(t, v))
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), changed.Load())
	assert.Equal(t, Loaded(5), v.State())
}

func TestViewLoad_CancelledIsNotAnError(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	v, logs := newTestView(cl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, v.Load(ctx))
	assert.Equal(t, Unloaded, v.State())
	assert.NotContains(t, logs.String(), `"level":"error"`)
}

func TestViewRender_RoundTrip(t *testing.T) {
	for _, n := range []uint32{0, 3, 65536, 4294967295} {
		body := strconv.FormatUint(uint64(n), 10)
		v, _ := newTestView(fetchFunc(func(ctx context.Context) (uint32, error) {
			return Parse(body)
		}))

		require.True(t, v.Load(context.Background()))
		assert.Equal(t, "<div><div>"+body+"</div></div>", rendered(t, v))
	}
}

func TestComponent_FetchesOncePerMount(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetchFunc(func(ctx context.Context) (uint32, error) {
		calls.Add(1)
		return 42, nil
	})
	app := front.New()
	app.Config(front.Options{LogLevel: front.LogLevelError})
	app.Switch(func(c *front.Context, r route.Route) {
		if r == route.Counter {
			Component(fetcher)(c)
			return
		}
		c.View(func() h.H { return h.H1(h.Text(r.String())) })
	})
	defer app.Shutdown()

	for i := 1; i <= 2; i++ {
		w := httptest.NewRecorder()
		app.HTTPServeMux().ServeHTTP(w, httptest.NewRequest("GET", "/counter", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<div><div></div></div>")
		want := int32(i)
		assert.Eventually(t, func() bool { return calls.Load() == want }, time.Second, 5*time.Millisecond)
	}

	w := httptest.NewRecorder()
	app.HTTPServeMux().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}
