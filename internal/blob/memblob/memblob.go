// Package memblob is an in-process blob.Store used for local runs and tests.
package memblob

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/blob"
)

const urlScheme = "mem://"

type entry struct {
	object blob.Object
	access blob.Access
	body   []byte
}

// Store keeps objects in a map keyed by pathname.
type Store struct {
	mu      sync.RWMutex
	objects map[string]entry
	access  blob.Access
	now     func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithRequiredAccess makes the store accept only writes with the given access class,
// the way hosted stores are configured as either public or private.
func WithRequiredAccess(a blob.Access) Option {
	return func(s *Store) {
		s.access = a
	}
}

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		objects: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) List(_ context.Context, prefix string) ([]blob.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]blob.Object, 0, len(s.objects))
	for pathname, e := range s.objects {
		if strings.HasPrefix(pathname, prefix) {
			out = append(out, e.object)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pathname < out[j].Pathname })
	return out, nil
}

func (s *Store) Get(_ context.Context, url string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[strings.TrimPrefix(url, urlScheme)]
	if !ok {
		return nil, errors.Wrap(blob.ErrNotFound, url)
	}
	body := make([]byte, len(e.body))
	copy(body, e.body)
	return body, nil
}

func (s *Store) Put(_ context.Context, pathname string, body []byte, opts blob.PutOptions) (blob.Object, error) {
	if s.access != "" && opts.Access != s.access {
		return blob.Object{}, errors.Wrapf(blob.ErrAccessMismatch, "store is %s, write requested %s", s.access, opts.Access)
	}
	if opts.AddRandomSuffix {
		pathname = blob.Suffixed(pathname, uuid.NewString()[:8])
	}

	stored := make([]byte, len(body))
	copy(stored, body)

	obj := blob.Object{
		Pathname:   pathname,
		URL:        urlScheme + pathname,
		Size:       int64(len(body)),
		UploadedAt: s.now(),
	}

	s.mu.Lock()
	s.objects[pathname] = entry{object: obj, access: opts.Access, body: stored}
	s.mu.Unlock()

	return obj, nil
}

func (s *Store) Delete(_ context.Context, urls ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, url := range urls {
		delete(s.objects, strings.TrimPrefix(url, urlScheme))
	}
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
