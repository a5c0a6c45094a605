// Package api implements the service's REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-multisig/config"
	"github.com/Klingon-tech/klingnet-multisig/internal/bytecode"
	klog "github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/internal/provision"
	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Generator provisions wallets.
type Generator interface {
	Generate(ctx context.Context, keys []types.PublicKey) (provision.Wallet, error)
}

// Spender authorizes spends.
type Spender interface {
	Authorize(ctx context.Context, req spend.Request) (spend.Result, error)
}

// Wallets looks up stored wallet records.
type Wallets interface {
	GetWallet(ctx context.Context, addr types.Address) (bytecode.Wallet, error)
}

// Server is the REST HTTP server.
type Server struct {
	addr        string
	generator   Generator
	spender     Spender
	wallets     Wallets
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// New creates a new API server. The apiCfg parameter controls IP filtering
// and CORS. A zero-value APIConfig allows all IPs and disables CORS.
func New(addr string, gen Generator, sp Spender, wallets Wallets, apiCfg ...config.APIConfig) *Server {
	metrics.Init()
	s := &Server{
		addr:      addr,
		generator: gen,
		spender:   sp,
		wallets:   wallets,
		logger:    klog.API,
	}

	if len(apiCfg) > 0 {
		s.allowedNets = parseAllowedIPs(apiCfg[0].AllowedIPs)
		s.corsOrigins = apiCfg[0].CORSOrigins
	}

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Generation waits on the compiler.
		WriteTimeout: 5 * time.Minute,
	}

	return s
}

// Handler returns the server's routes wrapped in filtering and recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate_wallet", s.post("generate_wallet", s.handleGenerateWallet))
	mux.HandleFunc("/generate_wallet/{$}", s.post("generate_wallet", s.handleGenerateWallet))
	mux.HandleFunc("/spend_funds", s.post("spend_funds", s.handleSpendFunds))
	mux.HandleFunc("/spend_funds/{$}", s.post("spend_funds", s.handleSpendFunds))
	mux.HandleFunc("GET /wallets/{address}", s.handleGetWallet)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.filter(mux)
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// filter applies IP filtering, CORS and panic recovery to every request.
func (s *Server) filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		defer func() {
			if p := recover(); p != nil {
				s.logger.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("Handler panicked")
				writeError(w, fmt.Errorf("panic: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// post restricts a route to POST and records request metrics.
func (s *Server) post(endpoint string, h func(w http.ResponseWriter, r *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
				Code:     0,
				Category: "method_not_allowed",
				Message:  "only POST method is allowed",
			}})
			return
		}
		status := h(w, r)
		metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}
