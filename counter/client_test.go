package counter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, fn http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(fn)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientFetch_Success(t *testing.T) {
	var method, path string
	var body []byte
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("42"))
	})

	n, err := cl.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint32(42), n)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/counter", path)
	assert.Empty(t, body)
}

func TestClientFetch_Status(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("7"))
	})

	_, err := cl.Fetch(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "Service Unavailable", statusErr.Text)
	assert.Equal(t, "503 (Service Unavailable)", statusErr.Error())
}

func TestClientFetch_NotANumber(t *testing.T) {
	for _, body := range []string{"not-a-number", "", " 42", "42\n", "-1", "+1", "4.2", "4294967296"} {
		t.Run(strconv.Quote(body), func(t *testing.T) {
			cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			_, err := cl.Fetch(context.Background())

			assert.ErrorIs(t, err, ErrNotANumber)
		})
	}
}

func TestClientFetch_ReadBodyFailure(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := http.NewResponseController(w).Hijack()
		require.NoError(t, err)
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n4")
		_ = buf.Flush()
	})

	_, err := cl.Fetch(context.Background())

	assert.ErrorIs(t, err, ErrReadBody)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestClientFetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cl := NewClient(srv.URL)
	srv.Close()

	_, err := cl.Fetch(context.Background())

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrReadBody)
	assert.NotErrorIs(t, err, ErrNotANumber)
}

func TestClientFetch_Cancelled(t *testing.T) {
	cl := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cl.Fetch(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_RoundTrip(t *testing.T) {
	for _, n := range []uint32{0, 1, 42, 1000000, 4294967295} {
		got, err := Parse(strconv.FormatUint(uint64(n), 10))
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, strconv.FormatUint(uint64(n), 10), Loaded(got).Text())
	}
}
