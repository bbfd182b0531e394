package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	mrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/grixate/fnbridge/internal/invoker"
)

var (
	bucketKV               = []byte("kv")
	bucketInvocationEvents = []byte("invocation_events")
	bucketSchemaMigrations = []byte("schema_migrations")
)

const schemaVersion = "1"

var ErrNotFound = errors.New("kv value not found")

type writeTask struct {
	ctx  context.Context
	fn   func(tx *bbolt.Tx) error
	done chan error
}

// Store serializes every write through a single writer goroutine; reads go
// straight to bbolt.
type Store struct {
	db      *bbolt.DB
	writes  chan writeTask
	stop    chan struct{}
	wg      sync.WaitGroup
	entropy *ulid.MonotonicEntropy
	mu      sync.Mutex
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	store := &Store{
		db:      db,
		writes:  make(chan writeTask, 128),
		stop:    make(chan struct{}),
		entropy: ulid.Monotonic(mrand.New(mrand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.wg.Add(1)
	go store.writer()
	return store, nil
}

func (s *Store) Close() error {
	close(s.stop)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) initSchema() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketKV, bucketInvocationEvents, bucketSchemaMigrations} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketSchemaMigrations).Put([]byte("schema_version"), []byte(schemaVersion))
	})
}

func (s *Store) SchemaVersion() (string, error) {
	var out string
	err := s.db.View(func(tx *bbolt.Tx) error {
		out = string(tx.Bucket(bucketSchemaMigrations).Get([]byte("schema_version")))
		return nil
	})
	return out, err
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case task := <-s.writes:
			err := s.db.Update(func(tx *bbolt.Tx) error {
				return task.fn(tx)
			})
			select {
			case task.done <- err:
			default:
			}
		}
	}
}

func (s *Store) runWrite(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	t := writeTask{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.writes <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) nextULID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func kvKey(namespace, key string) string {
	return fmt.Sprintf("kv:%s:%s", namespace, key)
}

func eventKey(id string) string {
	return "event:" + id
}

func (s *Store) PutKV(ctx context.Context, namespace, key string, value []byte) error {
	return s.runWrite(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(kvKey(namespace, key)), value)
	})
}

// GetKV returns ErrNotFound when the key was never written.
func (s *Store) GetKV(_ context.Context, namespace, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketKV).Get([]byte(kvKey(namespace, key)))
		if value == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), value...)
		return nil
	})
	return out, err
}

func (s *Store) AppendInvocationEvent(ctx context.Context, event invoker.Event) error {
	if event.ID == "" {
		event.ID = s.nextULID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.runWrite(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketInvocationEvents).Put([]byte(eventKey(event.ID)), bytes)
	})
}

// RecentInvocationEvents returns up to limit events, newest first. ULID keys
// keep the bucket in creation order.
func (s *Store) RecentInvocationEvents(_ context.Context, limit int) ([]invoker.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	events := make([]invoker.Event, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketInvocationEvents).Cursor()
		for key, value := cursor.Last(); key != nil && len(events) < limit; key, value = cursor.Prev() {
			var event invoker.Event
			if err := json.Unmarshal(value, &event); err != nil {
				continue
			}
			events = append(events, event)
		}
		return nil
	})
	return events, err
}
