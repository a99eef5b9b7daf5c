package wrapper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"os"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// LNDoptions holds the dial configuration for an LND node. Cert and
// macaroon can be passed either as file paths or hex-encoded inline.
type LNDoptions struct {
	Address      string
	CertFile     string
	CertHex      string
	MacaroonFile string
	MacaroonHex  string
}

type LNDWrapper struct {
	client lnrpc.LightningClient
	conn   *grpc.ClientConn

	IdentityPubkey string
}

// macaroonCredential attaches the hex-encoded macaroon to every RPC, the
// same metadata header lnd's own macaroon interceptor expects.
type macaroonCredential struct {
	macaroonHex string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroonHex}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

func NewLNDclient(lndOptions LNDoptions) (*LNDWrapper, error) {
	if lndOptions.Address == "" {
		return nil, errors.New("lnd address is required")
	}

	certPem, err := readPem(lndOptions.CertHex, lndOptions.CertFile)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if certPem != nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(certPem) {
			return nil, errors.New("failed to parse lnd TLS certificate")
		}
		tlsConfig.RootCAs = pool
	}

	macaroonHex := lndOptions.MacaroonHex
	if macaroonHex == "" && lndOptions.MacaroonFile != "" {
		macaroonBytes, err := os.ReadFile(lndOptions.MacaroonFile)
		if err != nil {
			return nil, err
		}
		macaroonHex = hex.EncodeToString(macaroonBytes)
	}
	if macaroonHex == "" {
		return nil, errors.New("lnd macaroon is required")
	}
	if _, err := hex.DecodeString(macaroonHex); err != nil {
		return nil, errors.New("lnd macaroon is not valid hex")
	}

	conn, err := grpc.NewClient(
		lndOptions.Address,
		grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
		grpc.WithPerRPCCredentials(macaroonCredential{macaroonHex: macaroonHex}),
	)
	if err != nil {
		return nil, err
	}

	return &LNDWrapper{
		client: lnrpc.NewLightningClient(conn),
		conn:   conn,
	}, nil
}

func readPem(pemHex, pemFile string) ([]byte, error) {
	if pemHex != "" {
		pem, err := hex.DecodeString(pemHex)
		if err != nil {
			return nil, errors.New("lnd TLS certificate is not valid hex")
		}
		return pem, nil
	}
	if pemFile != "" {
		return os.ReadFile(pemFile)
	}
	return nil, nil
}

func (wrapper *LNDWrapper) Close() error {
	return wrapper.conn.Close()
}

func (wrapper *LNDWrapper) GetInfo(ctx context.Context, req *lnrpc.GetInfoRequest, options ...grpc.CallOption) (*lnrpc.GetInfoResponse, error) {
	return wrapper.client.GetInfo(ctx, req, options...)
}

func (wrapper *LNDWrapper) GetNodeInfo(ctx context.Context, req *lnrpc.NodeInfoRequest, options ...grpc.CallOption) (*lnrpc.NodeInfo, error) {
	return wrapper.client.GetNodeInfo(ctx, req, options...)
}

func (wrapper *LNDWrapper) ListChannels(ctx context.Context, req *lnrpc.ListChannelsRequest, options ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error) {
	return wrapper.client.ListChannels(ctx, req, options...)
}

func (wrapper *LNDWrapper) PendingChannels(ctx context.Context, req *lnrpc.PendingChannelsRequest, options ...grpc.CallOption) (*lnrpc.PendingChannelsResponse, error) {
	return wrapper.client.PendingChannels(ctx, req, options...)
}

func (wrapper *LNDWrapper) GetChanInfo(ctx context.Context, req *lnrpc.ChanInfoRequest, options ...grpc.CallOption) (*lnrpc.ChannelEdge, error) {
	return wrapper.client.GetChanInfo(ctx, req, options...)
}

func (wrapper *LNDWrapper) ListPayments(ctx context.Context, req *lnrpc.ListPaymentsRequest, options ...grpc.CallOption) (*lnrpc.ListPaymentsResponse, error) {
	return wrapper.client.ListPayments(ctx, req, options...)
}

func (wrapper *LNDWrapper) ListInvoices(ctx context.Context, req *lnrpc.ListInvoiceRequest, options ...grpc.CallOption) (*lnrpc.ListInvoiceResponse, error) {
	return wrapper.client.ListInvoices(ctx, req, options...)
}

func (wrapper *LNDWrapper) LookupInvoice(ctx context.Context, req *lnrpc.PaymentHash, options ...grpc.CallOption) (*lnrpc.Invoice, error) {
	return wrapper.client.LookupInvoice(ctx, req, options...)
}

func (wrapper *LNDWrapper) SubscribeChannelEvents(ctx context.Context, req *lnrpc.ChannelEventSubscription, options ...grpc.CallOption) (lnrpc.Lightning_SubscribeChannelEventsClient, error) {
	return wrapper.client.SubscribeChannelEvents(ctx, req, options...)
}

func (wrapper *LNDWrapper) SubscribeInvoices(ctx context.Context, req *lnrpc.InvoiceSubscription, options ...grpc.CallOption) (lnrpc.Lightning_SubscribeInvoicesClient, error) {
	return wrapper.client.SubscribeInvoices(ctx, req, options...)
}
