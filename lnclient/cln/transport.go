package cln

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

// rpcClient speaks JSON-RPC 2.0 to a CLN node over mutual-TLS HTTPS. The
// node authenticates us by client certificate, we authenticate it by the
// CA certificate it was provisioned with.
type rpcClient struct {
	url        string
	httpClient *http.Client
	nextId     atomic.Uint64
}

func newRpcClient(conn lnclient.ClnConnection) (*rpcClient, error) {
	if conn.Address == "" {
		return nil, lnclient.ValidationError("cln address is required")
	}
	if conn.CaCertPem == "" || conn.ClientCertPem == "" || conn.ClientKeyPem == "" {
		return nil, lnclient.ValidationError("cln ca certificate, client certificate and client key are required")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(conn.CaCertPem)) {
		return nil, lnclient.ValidationError("failed to parse cln CA certificate")
	}

	clientCert, err := tls.X509KeyPair([]byte(conn.ClientCertPem), []byte(conn.ClientKeyPem))
	if err != nil {
		return nil, lnclient.ValidationError("failed to parse cln client certificate: %s", err)
	}

	return &rpcClient{
		url: conn.Address,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:   tls.VersionTLS12,
					RootCAs:      pool,
					Certificates: []tls.Certificate{clientCert},
				},
			},
		},
	}, nil
}

type rpcRequest struct {
	JsonRpc string      `json:"jsonrpc"`
	Id      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result into result.
// Params must marshal to a JSON object; nil sends an empty one.
func (c *rpcClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if params == nil {
		params = struct{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JsonRpc: "2.0",
		Id:      c.nextId.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return lnclient.ParseError(err, "failed to encode %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return lnclient.ConnectionError(err, "failed to build %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lnclient.ConnectionError(err, "%s request failed", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return lnclient.RpcError(nil, "%s returned HTTP %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return lnclient.ParseError(err, "failed to decode %s response", method)
	}
	if rpcResp.Error != nil {
		return lnclient.RpcError(fmt.Errorf("code %d: %s", rpcResp.Error.Code, rpcResp.Error.Message), "%s failed", method)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return lnclient.ParseError(err, "failed to decode %s result", method)
		}
	}
	return nil
}
