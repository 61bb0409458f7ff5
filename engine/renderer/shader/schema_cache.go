package shader

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
)

// SchemaCache memoizes Extract by source content. Failed extractions are memoized too, so a broken
// file is reflected once per edit rather than once per frame.
type SchemaCache interface {
	// Get returns the schema of the source, extracting it on the first request for this content.
	// The returned schema is a private copy.
	//
	// Parameters:
	//   - source: the shader source text
	//   - lang: the shading language of the source
	//
	// Returns:
	//   - *Schema: the reflected schema
	//   - string: the content hash the result is stored under
	//   - error: the extraction error, identical for repeated requests of the same content
	Get(source string, lang Language) (*Schema, string, error)

	// Forget drops the entry stored under hash.
	Forget(hash string)

	// Len returns the number of memoized sources.
	Len() int
}

type schemaResult struct {
	schema *Schema
	err    error
}

type schemaCache struct {
	mu      *sync.Mutex
	entries map[string]schemaResult
}

var _ SchemaCache = &schemaCache{}

// NewSchemaCache creates an empty SchemaCache.
func NewSchemaCache() SchemaCache {
	return &schemaCache{
		mu:      &sync.Mutex{},
		entries: make(map[string]schemaResult),
	}
}

// SourceHash is the key a SchemaCache stores a source under.
func SourceHash(source string, lang Language) string {
	return common.ContentHash(lang.String(), source)
}

func (c *schemaCache) Get(source string, lang Language) (*Schema, string, error) {
	hash := SourceHash(source, lang)

	c.mu.Lock()
	res, ok := c.entries[hash]
	c.mu.Unlock()
	if !ok {
		s, err := Extract(source, lang)
		res = schemaResult{schema: s, err: err}
		c.mu.Lock()
		c.entries[hash] = res
		c.mu.Unlock()
	}

	if res.err != nil {
		return nil, hash, res.err
	}
	return res.schema.clone(), hash, nil
}

func (c *schemaCache) Forget(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, hash)
}

func (c *schemaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
