// Package loader fetches fragment markup from an app-declaring server
// and caches it with a TTL and insertion-order eviction.
package loader

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/logging"
	"github.com/hostbridge/hostbridge/internal/protocol"
)

// Defaults applied when Options fields are zero.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultMaxCacheSize = 50
)

// Content is the fragment markup produced by a load. Immutable once
// returned; owned by the caller thereafter.
type Content struct {
	HTML     string
	MimeType string
	URI      string
}

// ReadResourceFunc fetches the raw resource behind a fragment URI.
type ReadResourceFunc func(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)

// Stats receives cache-behavior callbacks. Implementations must be
// safe for concurrent use.
type Stats interface {
	CacheHit()
	CacheMiss()
	CacheEviction()
}

// Options configures a Loader.
type Options struct {
	// TTL is the maximum entry age for a cache hit. Zero means DefaultTTL.
	TTL time.Duration
	// MaxCacheSize bounds the cache. Nil means DefaultMaxCacheSize;
	// an explicit value of zero or less disables caching entirely.
	MaxCacheSize *int
	Logger       *logging.Logger
	Stats        Stats
}

type entry struct {
	content   *Content
	timestamp time.Time
}

// Loader loads fragment markup with a private per-instance cache.
// Share one instance deliberately or not at all.
type Loader struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order, oldest first

	ttl     time.Duration
	maxSize int
	log     *logging.Logger
	stats   Stats
}

// New creates a Loader.
func New(opts Options) *Loader {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	maxSize := DefaultMaxCacheSize
	if opts.MaxCacheSize != nil {
		maxSize = *opts.MaxCacheSize
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{
		entries: make(map[string]*entry),
		ttl:     ttl,
		maxSize: maxSize,
		log:     log.Named("loader"),
		stats:   opts.Stats,
	}
}

// Load returns the markup behind uri, consulting the cache first.
func (l *Loader) Load(ctx context.Context, uri string, read ReadResourceFunc) (*Content, error) {
	if !strings.HasPrefix(uri, protocol.URIScheme) {
		return nil, &LoadError{URI: uri, Reason: "invalid URI scheme: expected " + protocol.URIScheme}
	}

	if c := l.cached(uri); c != nil {
		return c, nil
	}

	result, err := read(ctx, uri)
	if err != nil {
		return nil, &LoadError{URI: uri, Reason: "resource read failed", Cause: err}
	}
	if result == nil || len(result.Contents) == 0 {
		return nil, &LoadError{URI: uri, Reason: "resource has no contents"}
	}

	first := result.Contents[0]
	var markup string
	switch {
	case first.Text != nil:
		markup = *first.Text
	case first.Blob != "":
		decoded, err := base64.StdEncoding.DecodeString(first.Blob)
		if err != nil {
			return nil, &LoadError{URI: uri, Reason: "invalid base64 blob content", Cause: err}
		}
		markup = string(decoded)
	default:
		return nil, &LoadError{URI: uri, Reason: "resource has no text or blob content"}
	}

	mime := first.MimeType
	if mime == "" {
		mime = mimetype.Detect([]byte(markup)).String()
	}
	if mime != protocol.MIMEType && !strings.HasPrefix(mime, "text/html") {
		// Some servers omit or mislabel the MIME type without meaning a
		// protocol violation; warn but continue.
		l.log.Warn("unexpected fragment MIME type",
			zap.String("uri", uri),
			zap.String("mime_type", mime),
			zap.String("expected", protocol.MIMEType))
	}

	contentURI := first.URI
	if contentURI == "" {
		contentURI = uri
	}
	content := &Content{HTML: markup, MimeType: mime, URI: contentURI}

	l.insert(uri, content)
	return content, nil
}

// ClearCache drops all cached entries.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
	l.order = nil
}

// Invalidate drops the cached entry for uri, if any.
func (l *Loader) Invalidate(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remove(uri)
}

// CacheSize reports the number of live cache entries.
func (l *Loader) CacheSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// cached returns a fresh entry's content or nil, removing stale entries.
func (l *Loader) cached(uri string) *Content {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[uri]
	if !ok {
		l.recordMiss()
		return nil
	}
	if time.Since(e.timestamp) >= l.ttl {
		l.remove(uri)
		l.recordMiss()
		return nil
	}
	if l.stats != nil {
		l.stats.CacheHit()
	}
	return e.content
}

// insert adds a loaded entry, evicting the oldest entries by insertion
// order until the configured bound holds. A non-positive bound
// disables caching.
func (l *Loader) insert(uri string, content *Content) {
	if l.maxSize <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Replacing an existing entry keeps its slot out of the order list.
	l.remove(uri)

	for len(l.entries) >= l.maxSize && len(l.order) > 0 {
		oldest := l.order[0]
		l.remove(oldest)
		if l.stats != nil {
			l.stats.CacheEviction()
		}
		l.log.Debug("evicted fragment cache entry", zap.String("uri", oldest))
	}

	l.entries[uri] = &entry{content: content, timestamp: time.Now()}
	l.order = append(l.order, uri)
}

// remove deletes uri from the map and the order list. Callers hold mu.
func (l *Loader) remove(uri string) {
	if _, ok := l.entries[uri]; !ok {
		return
	}
	delete(l.entries, uri)
	for i, u := range l.order {
		if u == uri {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Loader) recordMiss() {
	if l.stats != nil {
		l.stats.CacheMiss()
	}
}
