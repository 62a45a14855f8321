// Package backend serves the counter API the front-end reads from. Each
// POST to the endpoint increments the counter and returns the new value as
// decimal text.
package backend

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Store increments and returns the counter.
type Store interface {
	Next(ctx context.Context) (uint32, error)
	Close() error
}

// Handler serves POST requests with the next counter value.
func Handler(store Store, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		n, err := store.Next(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("counter store failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		logger.Debug().Uint32("count", n).Msg("counter incremented")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(strconv.FormatUint(uint64(n), 10)))
	})
}

// MemoryStore keeps the counter in process memory.
type MemoryStore struct {
	n atomic.Uint32
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Next(context.Context) (uint32, error) {
	return m.n.Add(1), nil
}

func (m *MemoryStore) Close() error { return nil }
