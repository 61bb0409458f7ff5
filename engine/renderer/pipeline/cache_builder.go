package pipeline

import "github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithCompiler replaces the default naga compiler.
//
// Parameters:
//   - c: the compiler used to validate every source before a program is created
//
// Returns:
//   - CacheBuilderOption: a function that sets the compiler of the cache
func WithCompiler(c Compiler) CacheBuilderOption {
	return func(ca *cache) {
		ca.compiler = c
	}
}

// WithSourceLoader replaces the default filesystem source loader.
//
// Parameters:
//   - l: the loader that serves shader content
//
// Returns:
//   - CacheBuilderOption: a function that sets the source loader of the cache
func WithSourceLoader(l SourceLoader) CacheBuilderOption {
	return func(ca *cache) {
		ca.loader = l
	}
}

// WithSchemaCache shares a schema cache with other consumers, such as a parameter editor.
func WithSchemaCache(s shader.SchemaCache) CacheBuilderOption {
	return func(ca *cache) {
		ca.schemas = s
	}
}

// WithPrecompileWorkers sets the number of workers Precompile validates sources on.
//
// Parameters:
//   - n: the worker count, values below 1 are ignored
//
// Returns:
//   - CacheBuilderOption: a function that sets the worker count of the cache
func WithPrecompileWorkers(n int) CacheBuilderOption {
	return func(ca *cache) {
		if n > 0 {
			ca.workers = n
		}
	}
}
