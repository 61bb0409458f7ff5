// Package pipeline memoizes device programs by the content of their shader sources. A cache hit
// never recompiles. After a source changes the next request compiles afresh, and when that fails
// the last good program keeps serving while the error is reported.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
)

// Cache builds and memoizes pipelines.
type Cache interface {
	// GetOrBuild returns the pipeline for key, building it when the referenced sources or the
	// state changed since the last successful build.
	//
	// Parameters:
	//   - ctx: cancels the request before any work starts
	//   - key: the shader paths and fixed-function state
	//
	// Returns:
	//   - *Pipeline: the current pipeline. On a failed rebuild this is the previous good pipeline.
	//   - error: nil on success. A ClassTransient error when a stale pipeline is returned, a
	//     ClassStep error when no pipeline exists for key.
	GetOrBuild(ctx context.Context, key Key) (*Pipeline, error)

	// Invalidate marks the file at path as changed. Pipelines that reference it rebuild lazily
	// on their next request.
	Invalidate(path string)

	// Precompile validates every distinct source in keys in parallel, then builds each pipeline.
	//
	// Returns:
	//   - error: every build failure joined, nil if all keys built
	Precompile(ctx context.Context, keys []Key) error

	// Schema returns the reflected schema of one shader file.
	Schema(path string) (*shader.Schema, error)

	// Len returns the number of keys that currently hold a good pipeline.
	Len() int

	// Release frees every device program held by the cache.
	Release()
}

type entry struct {
	good *Pipeline

	// failedFingerprint remembers the last fingerprint that failed to build, so the same sources
	// are not recompiled on every request.
	failedFingerprint string
	failedErr         error
}

type cache struct {
	mu      *sync.Mutex
	entries map[string]*entry

	device   gpu.Device
	compiler Compiler
	loader   SourceLoader
	schemas  shader.SchemaCache

	// validated memoizes compiler results by source hash. It has its own lock so precompile
	// workers can fill it while a build holds mu.
	vmu       *sync.Mutex
	validated map[string]error

	workers int
	pool    worker.DynamicWorkerPool
}

var _ Cache = &cache{}

// NewCache creates a pipeline cache that creates its programs on device.
//
// Parameters:
//   - device: the device programs are created on
//   - opts: optional builder options
//
// Returns:
//   - Cache: the new cache
func NewCache(device gpu.Device, opts ...CacheBuilderOption) Cache {
	c := &cache{
		mu:        &sync.Mutex{},
		entries:   make(map[string]*entry),
		device:    device,
		vmu:       &sync.Mutex{},
		validated: make(map[string]error),
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.compiler == nil {
		c.compiler = NewNagaCompiler()
	}
	if c.loader == nil {
		c.loader = NewSourceLoader()
	}
	if c.schemas == nil {
		c.schemas = shader.NewSchemaCache()
	}
	// Workers exit after one idle second; the pool needs no shutdown.
	c.pool = worker.NewDynamicWorkerPool(c.workers, 256, 1*time.Second)
	return c
}

func (c *cache) GetOrBuild(ctx context.Context, key Key) (*Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}

	sources, err := c.load(key)
	if err != nil {
		return c.failure(e, key, err)
	}

	parts := []string{id}
	for _, s := range sources {
		parts = append(parts, s.Hash)
	}
	fingerprint := common.ContentHash(parts...)

	if e.good != nil && e.good.Fingerprint == fingerprint {
		return e.good, nil
	}
	if e.failedFingerprint == fingerprint {
		return c.failure(e, key, e.failedErr)
	}

	p, err := c.build(key, sources, fingerprint)
	if err != nil {
		e.failedFingerprint, e.failedErr = fingerprint, err
		common.Logger().Debug("pipeline build failed", "pipeline", key.Label(), "err", err)
		return c.failure(e, key, err)
	}

	p.Generation = 1
	if e.good != nil {
		c.device.ReleaseProgram(e.good.Program)
		p.Generation = e.good.Generation + 1
		common.Logger().Info("pipeline rebuilt", "pipeline", key.Label(), "generation", p.Generation)
	} else {
		common.Logger().Debug("pipeline built", "pipeline", key.Label())
	}
	e.good = p
	e.failedFingerprint, e.failedErr = "", nil
	return p, nil
}

// failure classifies a build error by whether a previous good pipeline can keep serving.
func (c *cache) failure(e *entry, key Key, err error) (*Pipeline, error) {
	if e.good != nil {
		return e.good, common.Transient("build pipeline", key.Label(), err)
	}
	return nil, common.StepError("build pipeline", key.Label(), err)
}

func (c *cache) load(key Key) ([]Source, error) {
	paths := key.Paths()
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			return nil, fmt.Errorf("%s pipeline is missing a shader path", key.Kind)
		}
		s, err := c.loader.Load(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

func (c *cache) build(key Key, sources []Source, fingerprint string) (*Pipeline, error) {
	schemas := make([]*shader.Schema, len(sources))
	for i, s := range sources {
		schema, _, err := c.schemas.Get(s.Text, s.Language)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Path, err)
		}
		schemas[i] = schema
	}
	for _, s := range sources {
		if err := c.validate(s); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{Key: key, Fingerprint: fingerprint}
	var err error
	if key.Kind == KindCompute {
		p.Schema, p.Program, err = c.buildCompute(key, sources[0], schemas[0])
	} else {
		vs, fs := sources[0], sources[len(sources)-1]
		p.Schema, p.Program, err = c.buildRender(key, vs, fs, schemas[0], schemas[len(schemas)-1])
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *cache) buildRender(key Key, vs, fs Source, vSchema, fSchema *shader.Schema) (*shader.Schema, gpu.ProgramHandle, error) {
	if vSchema.EntryPoints.Vertex == "" {
		return nil, gpu.InvalidHandle, fmt.Errorf("%s: %w: no vertex entry point", vs.Path, common.ErrSchema)
	}
	if fSchema.EntryPoints.Fragment == "" {
		return nil, gpu.InvalidHandle, fmt.Errorf("%s: %w: no fragment entry point", fs.Path, common.ErrSchema)
	}
	merged, err := shader.MergeStages(vSchema, fSchema)
	if err != nil {
		return nil, gpu.InvalidHandle, fmt.Errorf("%s: %w", key.Label(), err)
	}

	h, err := c.device.CreateRenderProgram(gpu.RenderProgramDescriptor{
		Label:          key.Label(),
		VertexPath:     vs.Path,
		FragmentPath:   fs.Path,
		VertexSource:   vs.Text,
		FragmentSource: fs.Text,
		VertexEntry:    merged.EntryPoints.Vertex,
		FragmentEntry:  merged.EntryPoints.Fragment,
		Layout:         merged.Layout(),
		ColorFormats:   key.State.ColorFormats,
		DepthFormat:    key.State.DepthFormat,
		DepthTest:      key.State.DepthTest,
		DepthWrite:     key.State.DepthWrite,
		Blend:          key.State.Blend,
	})
	if err != nil {
		return nil, gpu.InvalidHandle, fmt.Errorf("%w: %w", common.ErrCompile, err)
	}
	return merged, h, nil
}

func (c *cache) buildCompute(key Key, cs Source, schema *shader.Schema) (*shader.Schema, gpu.ProgramHandle, error) {
	if schema.EntryPoints.Compute == "" {
		return nil, gpu.InvalidHandle, fmt.Errorf("%s: %w: no compute entry point", cs.Path, common.ErrSchema)
	}
	schema = schema.WithStage(gpu.StageCompute)

	h, err := c.device.CreateComputeProgram(gpu.ComputeProgramDescriptor{
		Label:         key.Label(),
		Path:          cs.Path,
		Source:        cs.Text,
		Entry:         schema.EntryPoints.Compute,
		Layout:        schema.Layout(),
		WorkgroupSize: schema.WorkgroupSize,
	})
	if err != nil {
		return nil, gpu.InvalidHandle, fmt.Errorf("%w: %w", common.ErrCompile, err)
	}
	return schema, h, nil
}

// validate runs the compiler once per distinct source content.
func (c *cache) validate(s Source) error {
	c.vmu.Lock()
	err, ok := c.validated[s.Hash]
	c.vmu.Unlock()
	if ok {
		return err
	}

	if cerr := c.compiler.Validate(s.Text, s.Language); cerr != nil {
		err = fmt.Errorf("%w: %s: %w", common.ErrCompile, s.Path, cerr)
	}
	c.vmu.Lock()
	c.validated[s.Hash] = err
	c.vmu.Unlock()
	return err
}

func (c *cache) Invalidate(path string) {
	old, ok := c.loader.Invalidate(path)
	if !ok {
		return
	}
	c.schemas.Forget(old.Hash)
	c.vmu.Lock()
	delete(c.validated, old.Hash)
	c.vmu.Unlock()
	common.Logger().Debug("shader invalidated", "path", old.Path)
}

func (c *cache) Precompile(ctx context.Context, keys []Key) error {
	var errs []error
	seen := make(map[string]bool)
	var distinct []Source
	for _, k := range keys {
		sources, err := c.load(k)
		if err != nil {
			continue
		}
		for _, s := range sources {
			if !seen[s.Hash] {
				seen[s.Hash] = true
				distinct = append(distinct, s)
			}
		}
	}

	var wg sync.WaitGroup
	for i, s := range distinct {
		wg.Add(1)
		src := s
		c.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				return nil, c.validate(src)
			},
		})
	}
	wg.Wait()

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.GetOrBuild(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *cache) Schema(path string) (*shader.Schema, error) {
	s, err := c.loader.Load(path)
	if err != nil {
		return nil, err
	}
	schema, _, err := c.schemas.Get(s.Text, s.Language)
	return schema, err
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.good != nil {
			n++
		}
	}
	return n
}

func (c *cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.good != nil {
			c.device.ReleaseProgram(e.good.Program)
		}
	}
	c.entries = make(map[string]*entry)
}
