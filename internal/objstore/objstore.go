// Package objstore is an in-memory object store speaking the plain http
// object API: PUT, GET, HEAD and DELETE on /{container}/{object}.
//
// Only object sizes are kept; reads return zero bytes of the stored length.
// It exists to run surge locally and in tests without a real object store.
package objstore

import (
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Options controls latency and fault injection.
type Options struct {
	// Latency is added to every object request
	Latency time.Duration

	// ErrorRate is the fraction of object requests answered with 503
	ErrorRate float64

	// MaxObjectSize rejects larger writes with 413 (0 = unlimited)
	MaxObjectSize int64
}

// Store is an http.Handler keeping objects in memory.
type Store struct {
	opts Options

	mu      sync.RWMutex
	objects map[string]int64
	status  int

	countsMu sync.Mutex
	counts   map[string]int64
}

// New creates an empty store.
func New(opts Options) *Store {
	return &Store{
		opts:    opts,
		objects: make(map[string]int64),
		counts:  make(map[string]int64),
	}
}

// ServeHTTP implements http.Handler.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "healthy")
		return
	}

	s.countsMu.Lock()
	s.counts[r.Method]++
	s.countsMu.Unlock()

	if s.opts.Latency > 0 {
		select {
		case <-time.After(s.opts.Latency):
		case <-r.Context().Done():
			return
		}
	}

	if code := s.forcedStatus(); code != 0 {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(code)
		return
	}
	if s.opts.ErrorRate > 0 && rand.Float64() < s.opts.ErrorRate {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	if container, object, ok := strings.Cut(key, "/"); !ok || container == "" || object == "" {
		http.Error(w, "expected /{container}/{object}", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.put(w, r, key)
	case http.MethodGet, http.MethodHead:
		s.get(w, r, key)
	case http.MethodDelete:
		s.delete(w, key)
	default:
		w.Header().Set("Allow", "PUT, GET, HEAD, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Store) put(w http.ResponseWriter, r *http.Request, key string) {
	if s.opts.MaxObjectSize > 0 && r.ContentLength > s.opts.MaxObjectSize {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	n, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.objects[key] = n
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *Store) get(w http.ResponseWriter, r *http.Request, key string) {
	s.mu.RLock()
	size, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = io.CopyN(w, zeros{}, size)
	}
}

func (s *Store) delete(w http.ResponseWriter, key string) {
	s.mu.Lock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) forcedStatus() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus makes every object request fail with code. Zero restores
// normal operation.
func (s *Store) SetStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether container/object is stored.
func (s *Store) Has(container, object string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[container+"/"+object]
	return ok
}

// Requests returns how many object requests used method.
func (s *Store) Requests(method string) int64 {
	s.countsMu.Lock()
	defer s.countsMu.Unlock()
	return s.counts[method]
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
