// Package service assembles the multisig wallet service from its parts so it
// can be embedded in any binary.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-multisig/config"
	"github.com/Klingon-tech/klingnet-multisig/internal/api"
	"github.com/Klingon-tech/klingnet-multisig/internal/bytecode"
	"github.com/Klingon-tech/klingnet-multisig/internal/compiler"
	klog "github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/internal/nodeclient"
	"github.com/Klingon-tech/klingnet-multisig/internal/provision"
	"github.com/Klingon-tech/klingnet-multisig/internal/script"
	"github.com/Klingon-tech/klingnet-multisig/internal/signer"
	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/internal/storage"
)

// pruneInterval is how often kept workspaces are swept.
const pruneInterval = time.Hour

// Service is a fully-initialized multisig wallet service.
type Service struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db         storage.DB
	store      *bytecode.KVStore
	workspace  *script.Workspace
	generator  *provision.Generator
	node       *nodeclient.Client
	authorizer *spend.Authorizer
	submitter  *signer.Submitter

	// API
	apiServer *api.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a Service. It performs all setup steps
// (logger, storage, template, compiler, node client, API) but does NOT
// start serving. Call Start() for that.
func New(cfg *config.Config) (*Service, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" && cfg.DataDir != "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "multisig.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("service")

	logger.Info().
		Str("datadir", cfg.DataDir).
		Str("store", cfg.Store.Backend).
		Str("node", cfg.Node.URL).
		Msg("Starting multisig wallet service")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.Open(cfg.Store.Backend, cfg.StoreDir())
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.StoreDir(), err)
	}
	store := bytecode.NewKVStore(db)
	if n, err := store.CountWallets(context.Background()); err == nil {
		logger.Info().Str("path", cfg.StoreDir()).Int("wallets", n).Msg("Store opened")
	}

	// ── 3. Template and compiler ────────────────────────────────────
	tmpl, err := loadTemplate(cfg.Compiler.Template)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine, err := script.NewEngine(tmpl)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("template %s: %w", cfg.Compiler.Template, err)
	}
	workspace := script.NewWorkspace(cfg.WorkspaceDir(), engine)
	pool := compiler.NewPool(compiler.NewForc(cfg.Compiler.Binary), cfg.Compiler.Workers, cfg.Compiler.Timeout)
	generator := provision.New(engine, workspace, pool, store, cfg.Compiler.KeepWorkspace)

	logger.Info().
		Str("binary", cfg.Compiler.Binary).
		Int("workers", cfg.Compiler.Workers).
		Str("template", engine.Fingerprint().Hex()[:16]+"...").
		Msg("Compiler ready")

	// ── 4. Submitter key ────────────────────────────────────────────
	var submitter *signer.Submitter
	if cfg.Submitter.KeyFile != "" {
		submitter, err = signer.LoadSubmitter(expandHome(cfg.Submitter.KeyFile), []byte(os.Getenv(config.SubmitterPassphraseEnv)))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load submitter key %s: %w", cfg.Submitter.KeyFile, err)
		}
		logger.Info().Msg("Submitter key loaded")
	}

	// ── 5. Node and spends ──────────────────────────────────────────
	node := nodeclient.NewWithTimeout(cfg.Node.URL, cfg.Node.Timeout)
	var envelope spend.EnvelopeSigner
	if submitter != nil {
		envelope = submitter
	}
	authorizer := spend.New(store, node, envelope, spend.Config{
		SubmitTimeout: cfg.Node.Timeout,
		DedupTTL:      cfg.Spend.DedupTTL,
	})

	// ── 6. API server ───────────────────────────────────────────────
	apiServer := api.New(cfg.ListenAddr(), generator, authorizer, store, cfg.API)

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      store,
		workspace:  workspace,
		generator:  generator,
		node:       node,
		authorizer: authorizer,
		submitter:  submitter,
		apiServer:  apiServer,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches the API server and background housekeeping.
func (s *Service) Start() error {
	s.checkNode()

	s.authorizer.Start()
	if err := s.apiServer.Start(); err != nil {
		return err
	}

	if s.cfg.Compiler.KeepWorkspace && s.cfg.Compiler.WorkspaceTTL > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runPrune(pruneInterval)
		}()
	}

	s.logger.Info().Str("addr", s.apiServer.Addr()).Msg("Service started")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()

	if err := s.apiServer.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("API shutdown")
	}
	s.authorizer.Stop()
	if s.db != nil {
		s.db.Close()
	}

	s.logger.Info().Msg("Goodbye!")
}

// APIAddr returns the address the API server is listening on.
func (s *Service) APIAddr() string {
	return s.apiServer.Addr()
}

// checkNode logs whether the ledger node answers. An unreachable node does
// not stop the service; wallet generation works without it.
func (s *Service) checkNode() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	info, err := s.node.Connect(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Ledger node unreachable")
		return
	}
	s.logger.Info().
		Str("version", info.Version).
		Uint64("chain_id", info.ChainID).
		Uint64("height", info.BlockHeight).
		Msg("Ledger node connected")
}

// runPrune removes kept workspaces older than the configured TTL.
func (s *Service) runPrune(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.pruneOnce()
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) pruneOnce() {
	n, err := s.workspace.Prune(s.cfg.Compiler.WorkspaceTTL)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Workspace prune failed")
		return
	}
	if n > 0 {
		s.logger.Debug().Int("removed", n).Msg("Pruned workspaces")
	}
}
