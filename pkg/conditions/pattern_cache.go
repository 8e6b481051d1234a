package conditions

import (
	"fmt"
	"regexp"

	"github.com/dgraph-io/ristretto/v2"
)

const maxPatternLength = 500

// patternCache memoizes compiled regular expressions for the matches operator.
type patternCache struct {
	cache *ristretto.Cache[string, *regexp.Regexp]
}

func newPatternCache() (*patternCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *regexp.Regexp]{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     1000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	return &patternCache{cache: cache}, nil
}

// Compile returns the cached compiled pattern or compiles and caches it.
func (p *patternCache) Compile(pattern string) (*regexp.Regexp, error) {
	if re, found := p.cache.Get(pattern); found {
		return re, nil
	}

	if len(pattern) > maxPatternLength {
		return nil, fmt.Errorf("regex pattern too long (max %d chars): %d chars", maxPatternLength, len(pattern))
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
	}

	p.cache.Set(pattern, re, 1)

	return re, nil
}

func (p *patternCache) Close() {
	p.cache.Close()
}
