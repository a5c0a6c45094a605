package compiler

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/internal/script"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// DefaultTimeout bounds a single compile when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// Pool runs compiles on worker goroutines, at most workers at a time.
type Pool struct {
	compiler Compiler
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   zerolog.Logger
}

type result struct {
	code types.Bytecode
	err  error
}

// NewPool wraps c with a bounded worker pool.
func NewPool(c Compiler, workers int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	metrics.Init()
	return &Pool{
		compiler: c,
		sem:      semaphore.NewWeighted(int64(workers)),
		timeout:  timeout,
		logger:   log.Compiler,
	}
}

// Build compiles p and returns its validated bytecode. The caller may stop
// waiting when ctx is cancelled; the compile itself then runs on until it
// finishes or hits the pool timeout, and its result is discarded.
func (p *Pool) Build(ctx context.Context, proj script.Project) (types.Bytecode, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.WithRoot(errors.ErrCompile, err, "wait for compiler slot")
	}

	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		code, err := p.run(context.WithoutCancel(ctx), proj)
		done <- result{code: code, err: err}
	}()

	select {
	case r := <-done:
		return r.code, r.err
	case <-ctx.Done():
		return nil, errors.WithRoot(errors.ErrCompile, ctx.Err(), "compile abandoned")
	}
}

func (p *Pool) run(ctx context.Context, proj script.Project) (types.Bytecode, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_ = os.Remove(proj.OutputFile)

	start := time.Now()
	metrics.CompilerRuns.Inc()
	err := p.compiler.Compile(ctx, proj.Dir, proj.OutputFile)
	metrics.CompileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "exit"
		if ctx.Err() != nil {
			reason = "timeout"
		}
		metrics.CompilerFailures.WithLabelValues(reason).Inc()
		_ = os.Remove(proj.OutputFile)
		p.logger.Warn().Err(err).Str("project", proj.Name).Str("reason", reason).Msg("Compile failed")
		if !errors.Is(err, errors.ErrCompile) {
			err = errors.WithRoot(errors.ErrCompile, err, "compile")
		}
		return nil, err
	}

	data, err := os.ReadFile(proj.OutputFile)
	if err != nil {
		metrics.CompilerFailures.WithLabelValues("output").Inc()
		return nil, errors.WithRoot(errors.ErrCompile, err, "read compiler output")
	}
	code := types.Bytecode(data)
	if err := Validate(code); err != nil {
		metrics.CompilerFailures.WithLabelValues("output").Inc()
		_ = os.Remove(proj.OutputFile)
		return nil, err
	}

	p.logger.Debug().
		Str("project", proj.Name).
		Int("size", code.Size()).
		Dur("took", time.Since(start)).
		Msg("Compiled predicate")
	return code, nil
}

// Validate rejects compiler output that cannot be a predicate: empty, or not
// a whole number of instructions.
func Validate(code types.Bytecode) error {
	if len(code) == 0 {
		return errors.ErrCompile.New("compiler produced empty bytecode")
	}
	if len(code)%types.InstructionSize != 0 {
		return errors.ErrCompile.Newf("bytecode size %d is not a multiple of %d", len(code), types.InstructionSize)
	}
	return nil
}
