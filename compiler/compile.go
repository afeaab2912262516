package compiler

import (
	"context"
	stderrors "errors"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/circuit/builder"
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/cache"
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/schedule"
	"github.com/wippyai/circuit/verify"
)

// Compiled is the outcome of compiling one method.
type Compiled struct {
	Method  *bytecode.Method
	Circuit *gate.Circuit
	// Build is nil when the circuit came from the cache.
	Build *builder.Result
	// Schedule is nil when scheduling is disabled or the circuit came from
	// the cache.
	Schedule *schedule.Result
	// Blocks is the scheduled block order, from Schedule or from the cache.
	Blocks [][]gate.Ref
	Err    error
	Folded int
	Cached bool
}

// Compiler compiles methods with one configuration. It is safe for
// concurrent use.
type Compiler struct {
	cache  *cache.Store
	log    *zap.Logger
	filter methodFilter
	cfg    Config
}

// New creates a compiler, opening the cache if one is configured.
func New(cfg Config) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	c := &Compiler{
		cfg:    cfg,
		log:    log,
		filter: parseMethodFilter(cfg.LogMethods),
	}
	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		c.cache = store
	}
	return c, nil
}

// Close releases the cache.
func (c *Compiler) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Config returns the configuration the compiler was created with.
func (c *Compiler) Config() Config { return c.cfg }

func (c *Compiler) loggerFor(method string) *zap.Logger {
	if !c.filter.admits(method) {
		return zap.NewNop()
	}
	return c.log
}

func (c *Compiler) cacheKey(m *bytecode.Method) (string, error) {
	digest, err := m.Digest()
	if err != nil {
		return "", err
	}
	if c.cfg.FoldSelectors {
		digest += ":fold"
	}
	if c.cfg.TypeHints {
		digest += ":types"
	}
	return digest, nil
}

// Compile runs the pipeline on m.
func (c *Compiler) Compile(m *bytecode.Method) (*Compiled, error) {
	base := c.loggerFor(m.Name)
	log := base.With(zap.String("method", m.Name))

	var key string
	if c.cache != nil {
		k, err := c.cacheKey(m)
		if err != nil {
			return nil, err
		}
		key = k
		if out, ok := c.fromCache(m, key, log); ok {
			return out, nil
		}
	}

	opts := builder.Options{Logger: base, Capacity: c.cfg.ArenaCapacity}
	if c.cfg.TypeHints {
		opts.Types = builder.OpcodeTypes{Method: m}
	}
	res, err := builder.Build(m, opts)
	if err != nil {
		return nil, err
	}
	out := &Compiled{Method: m, Circuit: res.Circuit, Build: res}

	if c.cfg.FoldSelectors {
		out.Folded = FoldSelectors(res.Circuit)
		log.Debug("selectors folded", zap.Int("count", out.Folded))
	}

	if c.cfg.Verify && !verify.RunWith(res.Circuit, m.Name, base, c.cfg.verifyOptions()) {
		return nil, errors.Unsound(m.Name)
	}

	if c.cfg.Schedule {
		sched, err := schedule.Run(res.Circuit, log)
		if err != nil {
			return nil, errors.InMethod(err, m.Name)
		}
		out.Schedule = sched
		out.Blocks = sched.Blocks
		if log.Core().Enabled(zap.DebugLevel) {
			sched.Print(res.Circuit, log)
		}
	}

	if c.cache != nil {
		c.store(out, key, log)
	}
	return out, nil
}

func (c *Compiler) fromCache(m *bytecode.Method, key string, log *zap.Logger) (*Compiled, bool) {
	e, err := c.cache.Get(key)
	if err != nil {
		if !stderrors.Is(err, cache.ErrNotFound) {
			log.Warn("cache lookup failed", zap.Error(err))
		}
		return nil, false
	}
	circ, err := gate.Restore(e.Snapshot)
	if err != nil {
		log.Warn("cached snapshot unusable", zap.Error(err))
		return nil, false
	}
	if c.cfg.Schedule && e.Blocks == nil {
		return nil, false
	}
	log.Debug("cache hit", zap.String("digest", key))
	return &Compiled{Method: m, Circuit: circ, Blocks: e.Blocks, Cached: true}, true
}

func (c *Compiler) store(out *Compiled, key string, log *zap.Logger) {
	snap, err := out.Circuit.Snapshot()
	if err != nil {
		log.Warn("snapshot failed", zap.Error(err))
		return
	}
	err = c.cache.Put(&cache.Entry{
		Digest:   key,
		Name:     out.Method.Name,
		Snapshot: snap,
		Blocks:   out.Blocks,
	})
	if err != nil {
		log.Warn("cache store failed", zap.Error(err))
	}
}

// CompileAll compiles methods concurrently, at most Config.Workers at a
// time (GOMAXPROCS when zero). The result has one entry per method in
// input order; a method that fails has its error in Err. The returned
// error is non-nil only when ctx is cancelled.
func (c *Compiler) CompileAll(ctx context.Context, methods []*bytecode.Method) ([]*Compiled, error) {
	out := make([]*Compiled, len(methods))
	g, ctx := errgroup.WithContext(ctx)
	limit := c.cfg.Workers
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i, m := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := c.Compile(m)
			if err != nil {
				c.loggerFor(m.Name).Error("compile failed",
					zap.String("method", m.Name), zap.Error(err))
				res = &Compiled{Method: m, Err: err}
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Compile compiles one method with cfg.
func Compile(m *bytecode.Method, cfg Config) (*Compiled, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Compile(m)
}

// CompileAll compiles methods with cfg.
func CompileAll(ctx context.Context, methods []*bytecode.Method, cfg Config) ([]*Compiled, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.CompileAll(ctx, methods)
}
