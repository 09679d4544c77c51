// internal/rules/cache.go
package rules

import (
	"fmt"
	"regexp"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Bounded parse caches.
 *
 * RegexCache maps pattern text to a compiled *regexp.Regexp or to a
 * known-invalid sentinel so a bad pattern is compiled once, not once per row
 * per rule. DateCache does the same for date cells, which repeat heavily in
 * order exports (one date per order, many rows per order).
 *
 * Eviction: least-recently-used once capacity is reached.
 * Thread-safety: both caches are safe for concurrent use; they are the only
 * state shared between engine instances. Entries are immutable once stored
 * (compiled regexps are safe for concurrent matching).
 */

// Default cache capacities.
const (
	DefaultRegexCacheSize = 256
	DefaultDateCacheSize  = 4096
)

type regexEntry struct {
	re  *regexp.Regexp
	err error
}

// RegexCache is a bounded LRU of compiled patterns.
type RegexCache struct {
	entries *lru.Cache[string, regexEntry]
}

// NewRegexCache creates a cache holding at most size patterns.
func NewRegexCache(size int) (*RegexCache, error) {
	c, err := lru.New[string, regexEntry](size)
	if err != nil {
		return nil, fmt.Errorf("regex cache: %w", err)
	}
	return &RegexCache{entries: c}, nil
}

// Compile returns the compiled pattern, compiling and caching on a miss.
// Invalid patterns are cached too and return an error wrapping
// types.ErrInvalidRegex.
func (c *RegexCache) Compile(pattern string) (*regexp.Regexp, error) {
	if e, ok := c.entries.Get(pattern); ok {
		return e.re, e.err
	}
	re, err := regexp.Compile(pattern)
	e := regexEntry{re: re}
	if err != nil {
		e = regexEntry{err: fmt.Errorf("%w: %v", types.ErrInvalidRegex, err)}
	}
	c.entries.Add(pattern, e)
	return e.re, e.err
}

// Len returns the number of cached patterns.
func (c *RegexCache) Len() int { return c.entries.Len() }

type dateEntry struct {
	t  time.Time
	ok bool
}

// DateCache is a bounded LRU of parsed date strings.
type DateCache struct {
	entries *lru.Cache[string, dateEntry]
}

// NewDateCache creates a cache holding at most size date strings.
func NewDateCache(size int) (*DateCache, error) {
	c, err := lru.New[string, dateEntry](size)
	if err != nil {
		return nil, fmt.Errorf("date cache: %w", err)
	}
	return &DateCache{entries: c}, nil
}

// Parse returns ParseDate(s), caching the outcome.
func (c *DateCache) Parse(s string) (time.Time, bool) {
	if e, ok := c.entries.Get(s); ok {
		return e.t, e.ok
	}
	t, ok := ParseDate(s)
	c.entries.Add(s, dateEntry{t: t, ok: ok})
	return t, ok
}

// Len returns the number of cached date strings.
func (c *DateCache) Len() int { return c.entries.Len() }

var (
	sharedRegex = mustRegexCache(DefaultRegexCacheSize)
	sharedDates = mustDateCache(DefaultDateCacheSize)
)

// SharedRegexCache returns the process-wide pattern cache used by default.
func SharedRegexCache() *RegexCache { return sharedRegex }

// SharedDateCache returns the process-wide date cache used by default.
func SharedDateCache() *DateCache { return sharedDates }

func mustRegexCache(size int) *RegexCache {
	c, err := NewRegexCache(size)
	if err != nil {
		panic(err)
	}
	return c
}

func mustDateCache(size int) *DateCache {
	c, err := NewDateCache(size)
	if err != nil {
		panic(err)
	}
	return c
}
