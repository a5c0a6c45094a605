package nodeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const endpoint = "http://node.test/v1/jsonrpc"

func newMockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	return NewWithHTTPClient(endpoint, &http.Client{Transport: transport, Timeout: time.Second}), transport
}

// rpcResponder answers a JSON-RPC call for method with result, echoing the id.
func rpcResponder(t *testing.T, method string, result interface{}) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		var r request
		require.NoError(t, json.Unmarshal(body, &r))
		require.Equal(t, "2.0", r.JSONRPC)
		require.Equal(t, method, r.Method)
		return httpmock.NewJsonResponse(200, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      r.ID,
			"result":  result,
		})
	}
}

func TestConnect(t *testing.T) {
	c, mock := newMockClient(t)
	mock.RegisterResponder("POST", endpoint, rpcResponder(t, MethodGetInfo, Info{Version: "0.1.0", BlockHeight: 42}))

	info, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.1.0", info.Version)
	require.Equal(t, uint64(42), info.BlockHeight)
}

func TestConnectFailure(t *testing.T) {
	c, mock := newMockClient(t)
	mock.RegisterResponder("POST", endpoint, httpmock.NewErrorResponder(fmt.Errorf("connection refused")))

	_, err := c.Connect(context.Background())
	require.True(t, errors.Is(err, errors.ErrConnect), "got %v", err)
}

func testSpend() *PredicateSpend {
	return &PredicateSpend{
		Owner:    types.Address{1},
		Code:     types.Bytecode{1, 2, 3, 4},
		AssetID:  types.AssetID{},
		Amount:   10,
		Inputs:   []Input{{UTXOID: types.UTXOID{TxID: types.TxID{7}, OutputIndex: 1}, Data: make(types.HexBytes, 128)}},
		DedupKey: "k1",
	}
}

func TestSubmitReturnsReceipts(t *testing.T) {
	c, mock := newMockClient(t)
	receipts := []types.Receipt{{Kind: types.ReceiptTransfer, ID: types.TxID{9}, Amount: 10}}
	mock.RegisterResponder("POST", endpoint, rpcResponder(t, MethodSubmitSpend, map[string]interface{}{"receipts": receipts}))

	got, err := c.SubmitPredicateSpend(context.Background(), testSpend())
	require.NoError(t, err)
	require.Equal(t, receipts, got)
	require.Equal(t, 1, mock.GetTotalCallCount())
}

func TestSubmitRejected(t *testing.T) {
	c, mock := newMockClient(t)
	mock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(200,
		`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"predicate returned false"}}`))

	_, err := c.SubmitPredicateSpend(context.Background(), testSpend())
	require.True(t, errors.Is(err, errors.ErrSubmit), "got %v", err)
	require.Contains(t, err.Error(), "predicate returned false")
}

func TestSubmitTransportFailureIsUnknown(t *testing.T) {
	c, mock := newMockClient(t)
	mock.RegisterResponder("POST", endpoint, httpmock.NewErrorResponder(fmt.Errorf("connection reset by peer")))

	_, err := c.SubmitPredicateSpend(context.Background(), testSpend())
	require.True(t, errors.Is(err, errors.ErrOutcomeUnknown), "got %v", err)
}

func TestSubmitGarbageIsUnknown(t *testing.T) {
	c, mock := newMockClient(t)
	mock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(502, "<html>bad gateway</html>"))

	_, err := c.SubmitPredicateSpend(context.Background(), testSpend())
	require.True(t, errors.Is(err, errors.ErrOutcomeUnknown), "got %v", err)
}

func TestSubmitContextTimeoutIsUnknown(t *testing.T) {
	c, mock := newMockClient(t)
	mock.RegisterResponder("POST", endpoint, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.SubmitPredicateSpend(ctx, testSpend())
	require.True(t, errors.Is(err, errors.ErrOutcomeUnknown), "got %v", err)
}

func TestSigningBytesCoverFields(t *testing.T) {
	a := testSpend()
	b := testSpend()
	require.Equal(t, a.SigningBytes(), b.SigningBytes())

	b.Amount++
	require.NotEqual(t, a.SigningBytes(), b.SigningBytes())

	c := testSpend()
	c.DedupKey = "k2"
	require.NotEqual(t, a.SigningBytes(), c.SigningBytes())

	d := testSpend()
	d.Submitter = &Envelope{Signature: types.HexBytes{1}}
	require.Equal(t, a.SigningBytes(), d.SigningBytes())
}
