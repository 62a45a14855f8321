package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/delaneyj/toolbelt/embeddednats"
	"github.com/nats-io/nats.go"
)

// KVBucket is the JetStream key-value bucket holding the counter.
const KVBucket = "front"

const maxCASAttempts = 16

// KVStore keeps the counter in a NATS JetStream key-value bucket, optionally
// on an embedded server it owns.
type KVStore struct {
	server *embeddednats.Server
	nc     *nats.Conn
	kv     nats.KeyValue
}

// OpenKV starts an embedded NATS server with JetStream enabled, storing data
// in dataDir, and returns a store backed by it. The server shuts down when
// ctx is cancelled or the store is closed.
func OpenKV(ctx context.Context, dataDir string) (*KVStore, error) {
	ns, err := embeddednats.New(ctx, embeddednats.WithDirectory(dataDir))
	if err != nil {
		return nil, fmt.Errorf("backend: start nats server: %w", err)
	}
	ns.WaitForServer()

	nc, err := ns.Client()
	if err != nil {
		ns.Close()
		return nil, fmt.Errorf("backend: connect nats client: %w", err)
	}

	s, err := NewKVStore(nc)
	if err != nil {
		nc.Close()
		ns.Close()
		return nil, err
	}
	s.server = ns
	return s, nil
}

// NewKVStore uses an existing connection and creates the bucket if missing.
func NewKVStore(nc *nats.Conn) (*KVStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("backend: init jetstream: %w", err)
	}
	kv, err := js.KeyValue(KVBucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: KVBucket, History: 1})
	}
	if err != nil {
		return nil, fmt.Errorf("backend: open bucket %s: %w", KVBucket, err)
	}
	return &KVStore{nc: nc, kv: kv}, nil
}

// Next increments the counter with compare-and-set, retrying when another
// writer got there first. The counter does not wrap: at math.MaxUint32 Next
// fails and the stored value is left alone.
func (s *KVStore) Next(ctx context.Context) (uint32, error) {
	for range maxCASAttempts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		entry, err := s.kv.Get(CounterName)
		switch {
		case errors.Is(err, nats.ErrKeyNotFound):
			if _, err := s.kv.Create(CounterName, []byte("1")); err == nil {
				return 1, nil
			} else if !errors.Is(err, nats.ErrKeyExists) {
				return 0, fmt.Errorf("backend: create counter: %w", err)
			}
			continue
		case err != nil:
			return 0, fmt.Errorf("backend: get counter: %w", err)
		}

		next, err := nextValue(entry.Value())
		if err != nil {
			return 0, err
		}
		_, err = s.kv.Update(CounterName, []byte(strconv.FormatUint(uint64(next), 10)), entry.Revision())
		switch {
		case err == nil:
			return next, nil
		case !errors.Is(err, nats.ErrKeyExists):
			return 0, fmt.Errorf("backend: update counter: %w", err)
		}
	}
	return 0, fmt.Errorf("backend: counter update contended %d times", maxCASAttempts)
}

// nextValue parses a stored counter and returns its successor.
func nextValue(raw []byte) (uint32, error) {
	cur, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("backend: corrupt counter %q: %w", raw, err)
	}
	if cur == math.MaxUint32 {
		return 0, fmt.Errorf("backend: counter out of range: %d", cur)
	}
	return uint32(cur) + 1, nil
}

// Close shuts down the client connection and, if owned, the embedded server.
func (s *KVStore) Close() error {
	s.nc.Close()
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
