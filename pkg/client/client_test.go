package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const base = "http://multisig.test"

func newMocked() (*Client, *httpmock.MockTransport) {
	mock := httpmock.NewMockTransport()
	return NewWithHTTPClient(base+"/", &http.Client{Transport: mock}), mock
}

func TestGenerateWallet(t *testing.T) {
	c, mock := newMocked()

	keys := make([]types.PublicKey, 3)
	for i := range keys {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = k.PublicKey()
	}
	addr := types.Address{0x42}

	mock.RegisterResponder(http.MethodPost, base+"/generate_wallet", func(req *http.Request) (*http.Response, error) {
		var body struct {
			PublicKeys []string `json:"public_keys"`
		}
		if err := httpmockDecode(req, &body); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
			"public_keys": body.PublicKeys,
			"wallet":      addr.String(),
			"wallet_id":   types.Hash{7}.Hex(),
		})
	})

	w, err := c.GenerateWallet(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, addr, w.Wallet)
	assert.Equal(t, keys[0], w.PublicKeys[0])
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestAPIErrorDecoded(t *testing.T) {
	c, mock := newMocked()
	mock.RegisterResponder(http.MethodPost, base+"/spend_funds",
		httpmock.NewStringResponder(http.StatusConflict,
			`{"error":{"code":18,"category":"outcome_unknown","message":"submit timed out","retryable":true}}`))

	_, err := c.SpendFunds(context.Background(), spend.Request{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, uint32(18), apiErr.Code)
	assert.Equal(t, "outcome_unknown", apiErr.Category)
	assert.True(t, apiErr.Retryable)
}

func TestNonJSONError(t *testing.T) {
	c, mock := newMocked()
	addr := types.Address{0x01}
	mock.RegisterResponder(http.MethodGet, base+"/wallets/"+addr.String(),
		httpmock.NewStringResponder(http.StatusForbidden, "forbidden\n"))

	_, err := c.GetWallet(context.Background(), addr)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "forbidden", apiErr.Message)
}

func TestSpendFundsResult(t *testing.T) {
	c, mock := newMocked()
	mock.RegisterResponder(http.MethodPost, base+"/spend_funds",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, spend.Result{Amount: 10, TxID: types.TxID{3}}))

	res, err := c.SpendFunds(context.Background(), spend.Request{Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, types.TxID{3}, res.TxID)
	assert.Equal(t, uint64(10), res.Amount)
}

func httpmockDecode(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(v)
}
