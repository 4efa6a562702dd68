// Package blob defines the key-addressed object store the dashboard persists into.
// Backends live in sub-packages: httpblob (hosted blob API), s3blob, sqliteblob and memblob.
package blob

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Access is the visibility class an object is written with.
type Access string

const (
	AccessPublic  Access = "public"
	AccessPrivate Access = "private"
)

// Other returns the opposite access class.
func (a Access) Other() Access {
	if a == AccessPrivate {
		return AccessPublic
	}
	return AccessPrivate
}

// ParseAccess parses an access class, defaulting to public on empty input.
func ParseAccess(s string) (Access, error) {
	switch Access(strings.ToLower(strings.TrimSpace(s))) {
	case "", AccessPublic:
		return AccessPublic, nil
	case AccessPrivate:
		return AccessPrivate, nil
	default:
		return "", errors.Errorf("unknown access class %q (want public or private)", s)
	}
}

var (
	// ErrNotFound is returned by Get when the addressed object does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrAccessMismatch is returned by Put when the store refuses the requested access class.
	ErrAccessMismatch = errors.New("blob access class not accepted by store")
)

// Object describes a stored blob as returned by List and Put.
type Object struct {
	Pathname   string    `json:"pathname"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// PutOptions controls a single write.
type PutOptions struct {
	Access          Access
	ContentType     string
	AddRandomSuffix bool
}

// Store is a key-addressed object store supporting list-by-prefix, get-by-url,
// put-with-overwrite and delete.
type Store interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, url string) ([]byte, error)
	Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (Object, error)
	Delete(ctx context.Context, urls ...string) error
}

// Pick selects the object stored under key. When no object matches exactly it falls back
// to the most recently uploaded object whose pathname starts with the key without its
// extension, which covers stores that append suffixes to pathnames.
func Pick(objects []Object, key string) (Object, bool) {
	for _, o := range objects {
		if o.Pathname == key {
			return o, true
		}
	}

	stem := strings.TrimSuffix(key, extension(key))
	candidates := make([]Object, 0, len(objects))
	for _, o := range objects {
		if strings.HasPrefix(o.Pathname, stem) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return Object{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UploadedAt.After(candidates[j].UploadedAt)
	})
	return candidates[0], true
}

// Suffixed inserts suffix before the extension of pathname, the way stores that append
// random suffixes name objects ("a/latest.json" -> "a/latest-<suffix>.json").
func Suffixed(pathname, suffix string) string {
	ext := extension(pathname)
	return strings.TrimSuffix(pathname, ext) + "-" + suffix + ext
}

func extension(key string) string {
	slash := strings.LastIndex(key, "/")
	dot := strings.LastIndex(key, ".")
	if dot <= slash {
		return ""
	}
	return key[dot:]
}
