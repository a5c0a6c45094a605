package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// GenerateWalletRequest is the body of POST /generate_wallet.
type GenerateWalletRequest struct {
	PublicKeys []string `json:"public_keys"`
}

// WalletResponse describes a stored wallet.
type WalletResponse struct {
	PublicKeys   types.KeySet   `json:"public_keys"`
	Wallet       types.Address  `json:"wallet"`
	WalletID     types.WalletID `json:"wallet_id"`
	BytecodeSize int            `json:"bytecode_size,omitempty"`
}

// readBody reads a size-limited body and decodes it into v.
func readBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.ErrInvalidRequest.New("failed to read request body")
	}
	if len(body) > maxBodySize {
		return errors.ErrInvalidRequest.New("request body too large")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.WithRoot(errors.ErrInvalidRequest, err, "invalid JSON")
	}
	return nil
}

func (s *Server) handleGenerateWallet(w http.ResponseWriter, r *http.Request) int {
	var req GenerateWalletRequest
	if err := readBody(r, &req); err != nil {
		return writeError(w, err)
	}

	keys := make([]types.PublicKey, len(req.PublicKeys))
	for i, raw := range req.PublicKeys {
		k, err := types.ParsePublicKey(raw)
		if err != nil {
			return writeError(w, errors.WithRoot(errors.ErrInvalidKeySet, err, "public_keys"))
		}
		keys[i] = k
	}

	wallet, err := s.generator.Generate(r.Context(), keys)
	if err != nil {
		return writeError(w, err)
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		PublicKeys: wallet.PublicKeys,
		Wallet:     wallet.Address,
		WalletID:   wallet.WalletID,
	})
	return http.StatusOK
}

func (s *Server) handleSpendFunds(w http.ResponseWriter, r *http.Request) int {
	var req spend.Request
	if err := readBody(r, &req); err != nil {
		return writeError(w, err)
	}
	res, err := s.spender.Authorize(r.Context(), req)
	if err != nil {
		return writeError(w, err)
	}
	writeJSON(w, http.StatusOK, res)
	return http.StatusOK
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	status := s.getWallet(w, r)
	metrics.APIRequests.WithLabelValues("wallets", strconv.Itoa(status)).Inc()
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) int {
	addr, err := types.ParseAddress(r.PathValue("address"))
	if err != nil {
		return writeError(w, errors.WithRoot(errors.ErrInvalidRequest, err, "address"))
	}
	rec, err := s.wallets.GetWallet(r.Context(), addr)
	if err != nil {
		return writeError(w, err)
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		PublicKeys:   rec.PublicKeys,
		Wallet:       rec.Address,
		WalletID:     rec.WalletID,
		BytecodeSize: rec.BytecodeSize,
	})
	return http.StatusOK
}
