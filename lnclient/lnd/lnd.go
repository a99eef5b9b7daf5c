package lnd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lightningnetwork/lnd/lnrpc"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/lnclient/lnd/wrapper"
	"github.com/GideonBature/nodegaze-sub000/logger"
)

type LNDService struct {
	client   *wrapper.LNDWrapper
	nodeInfo *lnclient.NodeInfo
	logger   zerolog.Logger
}

// NewLNDService dials the node, verifies it is the node the operator asked
// for and caches its identity. Connection attempts are retried a few times
// because lnd may still be starting when we are.
func NewLNDService(ctx context.Context, conn lnclient.LndConnection) (lnclient.LNClient, error) {
	if conn.Address == "" || conn.MacaroonHex == "" {
		return nil, lnclient.ValidationError("lnd address and macaroon are required")
	}

	lndClient, err := wrapper.NewLNDclient(wrapper.LNDoptions{
		Address:     conn.Address,
		CertHex:     conn.CertHex,
		MacaroonHex: conn.MacaroonHex,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to create LND client")
		return nil, lnclient.ConnectionError(err, "failed to create lnd client")
	}

	var nodeInfo *lnclient.NodeInfo
	maxRetries := 5
	for i := range maxRetries {
		nodeInfo, err = fetchNodeInfo(ctx, lndClient)
		if err == nil {
			break
		}
		logger.Logger.Error().Err(err).
			Int("iteration", i).
			Msg("Failed to connect to LND, retrying in 2s")

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, lnclient.ConnectionError(ctx.Err(), "cancelled while connecting to lnd")
		}
	}
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to connect to LND on final attempt, not attempting further retries")
		return nil, err
	}

	if err := conn.Id.Validate(nodeInfo.Pubkey, nodeInfo.Alias); err != nil {
		return nil, err
	}

	svc := &LNDService{
		client:   lndClient,
		nodeInfo: nodeInfo,
		logger:   logger.Logger.With().Str("backend", "LND").Str("node", nodeInfo.Pubkey).Logger(),
	}

	svc.logger.Info().Str("alias", nodeInfo.Alias).Msg("Connected to LND")

	return svc, nil
}

func fetchNodeInfo(ctx context.Context, client *wrapper.LNDWrapper) (*lnclient.NodeInfo, error) {
	resp, err := client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, lnclient.GetInfoError(err, "failed to fetch node info")
	}
	if len(resp.Chains) != 1 {
		return nil, lnclient.GetInfoError(nil, "node follows %d chains, expected exactly one", len(resp.Chains))
	}

	featureBits := make(map[uint32]bool, len(resp.Features))
	for bit := range resp.Features {
		featureBits[bit] = true
	}

	return &lnclient.NodeInfo{
		Pubkey:   resp.IdentityPubkey,
		Alias:    resp.Alias,
		Features: lnclient.FeaturesFromBits(featureBits),
	}, nil
}

func (svc *LNDService) GetInfo() *lnclient.NodeInfo {
	return svc.nodeInfo
}

func (svc *LNDService) GetNetwork(ctx context.Context) (lnclient.Network, error) {
	resp, err := svc.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return "", mapGrpcError(err, lnclient.ErrKindGetInfo, "failed to fetch node info")
	}
	if len(resp.Chains) != 1 {
		return "", lnclient.GetInfoError(nil, "node follows %d chains, expected exactly one", len(resp.Chains))
	}
	return lnclient.ParseNetwork(resp.Chains[0].Network)
}

func (svc *LNDService) GetNodeInfo(ctx context.Context, pubkey string) (*lnclient.NodeInfo, error) {
	resp, err := svc.client.GetNodeInfo(ctx, &lnrpc.NodeInfoRequest{PubKey: pubkey})
	if err != nil {
		return nil, mapGrpcError(err, lnclient.ErrKindGetNodeInfo, "failed to fetch node %s", pubkey)
	}

	featureBits := make(map[uint32]bool, len(resp.Node.Features))
	for bit := range resp.Node.Features {
		featureBits[bit] = true
	}

	return &lnclient.NodeInfo{
		Pubkey:   resp.Node.PubKey,
		Alias:    resp.Node.Alias,
		Features: lnclient.FeaturesFromBits(featureBits),
	}, nil
}

func (svc *LNDService) ListChannels(ctx context.Context) ([]lnclient.ChannelSummary, error) {
	activeResp, err := svc.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch channels")
		return nil, mapGrpcError(err, lnclient.ErrKindListChannels, "failed to list channels")
	}
	pendingResp, err := svc.client.PendingChannels(ctx, &lnrpc.PendingChannelsRequest{})
	if err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch pending channels")
		return nil, mapGrpcError(err, lnclient.ErrKindListChannels, "failed to list pending channels")
	}

	channels := make([]lnclient.ChannelSummary, 0,
		len(activeResp.Channels)+len(pendingResp.PendingOpenChannels)+len(pendingResp.WaitingCloseChannels)+len(pendingResp.PendingForceClosingChannels))

	for _, lndChannel := range activeResp.Channels {
		state := lnclient.ChannelStateActive
		if !lndChannel.Active {
			state = lnclient.ChannelStateDisabled
		}
		channels = append(channels, lnclient.ChannelSummary{
			ChanId:           lnclient.ShortChannelID(lndChannel.ChanId),
			State:            state,
			Private:          lndChannel.Private,
			RemotePubkey:     lndChannel.RemotePubkey,
			CapacitySat:      lnclient.SatOrZero(lndChannel.Capacity),
			LocalBalanceSat:  lnclient.SatOrZero(lndChannel.LocalBalance),
			RemoteBalanceSat: lnclient.SatOrZero(lndChannel.RemoteBalance),
		})
	}

	for _, pending := range pendingResp.PendingOpenChannels {
		channels = append(channels, pendingChannelSummary(pending.Channel, lnclient.ChannelStateOpening))
	}
	for _, pending := range pendingResp.WaitingCloseChannels {
		channels = append(channels, pendingChannelSummary(pending.Channel, lnclient.ChannelStateClosing))
	}
	for _, pending := range pendingResp.PendingForceClosingChannels {
		channels = append(channels, pendingChannelSummary(pending.Channel, lnclient.ChannelStateClosing))
	}

	return channels, nil
}

func pendingChannelSummary(channel *lnrpc.PendingChannelsResponse_PendingChannel, state lnclient.ChannelState) lnclient.ChannelSummary {
	return lnclient.ChannelSummary{
		State:            state,
		Private:          channel.Private,
		RemotePubkey:     channel.RemoteNodePub,
		CapacitySat:      lnclient.SatOrZero(channel.Capacity),
		LocalBalanceSat:  lnclient.SatOrZero(channel.LocalBalance),
		RemoteBalanceSat: lnclient.SatOrZero(channel.RemoteBalance),
	}
}

func (svc *LNDService) GetChannelInfo(ctx context.Context, chanId lnclient.ShortChannelID) (*lnclient.ChannelDetails, error) {
	channelEdge, err := svc.client.GetChanInfo(ctx, &lnrpc.ChanInfoRequest{ChanId: uint64(chanId)})
	if err != nil {
		return nil, mapGrpcError(err, lnclient.ErrKindGetGraph, "failed to fetch channel %s", chanId)
	}
	return channelEdgeToDetails(channelEdge), nil
}

func channelEdgeToDetails(channelEdge *lnrpc.ChannelEdge) *lnclient.ChannelDetails {
	node1Pub, node2Pub := channelEdge.Node1Pub, channelEdge.Node2Pub
	policy1 := routingPolicyToNodePolicy(node1Pub, channelEdge.Node1Policy)
	policy2 := routingPolicyToNodePolicy(node2Pub, channelEdge.Node2Policy)
	// node1 is always the lexicographically smaller pubkey
	if node1Pub > node2Pub {
		policy1, policy2 = policy2, policy1
	}
	return &lnclient.ChannelDetails{
		ChanId:      lnclient.ShortChannelID(channelEdge.ChannelId),
		CapacitySat: lnclient.SatOrZero(channelEdge.Capacity),
		Node1Policy: policy1,
		Node2Policy: policy2,
	}
}

func routingPolicyToNodePolicy(pubkey string, policy *lnrpc.RoutingPolicy) *lnclient.NodePolicy {
	if policy == nil {
		return nil
	}
	return &lnclient.NodePolicy{
		Pubkey:        pubkey,
		FeeBaseMsat:   lnclient.SatOrZero(policy.FeeBaseMsat),
		FeeRateMsat:   lnclient.SatOrZero(policy.FeeRateMilliMsat),
		MinHtlcMsat:   lnclient.SatOrZero(policy.MinHtlc),
		MaxHtlcMsat:   policy.MaxHtlcMsat,
		TimeLockDelta: policy.TimeLockDelta,
		Disabled:      policy.Disabled,
		LastUpdate:    uint64(policy.LastUpdate),
	}
}

func (svc *LNDService) ListPayments(ctx context.Context) ([]lnclient.PaymentSummary, error) {
	resp, err := svc.client.ListPayments(ctx, &lnrpc.ListPaymentsRequest{
		IncludeIncomplete: true,
	})
	if err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch payments")
		return nil, mapGrpcError(err, lnclient.ErrKindPayment, "failed to list payments")
	}

	payments := make([]lnclient.PaymentSummary, 0, len(resp.Payments))
	for _, payment := range resp.Payments {
		payments = append(payments, lndPaymentToSummary(payment))
	}
	return payments, nil
}

func (svc *LNDService) GetPaymentDetails(ctx context.Context, paymentHash string) (*lnclient.PaymentDetails, error) {
	resp, err := svc.client.ListPayments(ctx, &lnrpc.ListPaymentsRequest{
		IncludeIncomplete: true,
	})
	if err != nil {
		return nil, mapGrpcError(err, lnclient.ErrKindPayment, "failed to list payments")
	}

	for _, payment := range resp.Payments {
		if payment.PaymentHash != paymentHash {
			continue
		}
		details := &lnclient.PaymentDetails{
			PaymentSummary: lndPaymentToSummary(payment),
			Htlcs:          make([]lnclient.PaymentHtlc, 0, len(payment.Htlcs)),
		}
		for _, htlc := range payment.Htlcs {
			details.Htlcs = append(details.Htlcs, lndHtlcAttempt(htlc))
		}
		if len(payment.Htlcs) > 0 {
			route := payment.Htlcs[len(payment.Htlcs)-1].Route
			if route != nil && len(route.Hops) > 0 {
				details.DestinationPubkey = route.Hops[len(route.Hops)-1].PubKey
			}
		}
		return details, nil
	}

	return nil, lnclient.NotFoundError("payment %s not found", paymentHash)
}

func lndPaymentToSummary(payment *lnrpc.Payment) lnclient.PaymentSummary {
	var state lnclient.PaymentState
	switch payment.Status {
	case lnrpc.Payment_SUCCEEDED:
		state = lnclient.PaymentStateSettled
	case lnrpc.Payment_FAILED:
		state = lnclient.PaymentStateFailed
	default:
		state = lnclient.PaymentStateInflight
	}

	var resolvedAt int64
	for _, htlc := range payment.Htlcs {
		if htlc.ResolveTimeNs/1e9 > resolvedAt {
			resolvedAt = htlc.ResolveTimeNs / 1e9
		}
	}

	return lnclient.PaymentSummary{
		PaymentHash:   payment.PaymentHash,
		State:         state,
		AmountSat:     lnclient.MsatToSat(payment.ValueMsat),
		RoutingFeeSat: lnclient.MsatToSat(payment.FeeMsat),
		Invoice:       payment.PaymentRequest,
		CreatedAt:     payment.CreationTimeNs / 1e9,
		ResolvedAt:    resolvedAt,
	}
}

func lndHtlcAttempt(htlc *lnrpc.HTLCAttempt) lnclient.PaymentHtlc {
	attempt := lnclient.PaymentHtlc{
		AttemptId:   htlc.AttemptId,
		AttemptTime: htlc.AttemptTimeNs / 1e9,
		ResolveTime: htlc.ResolveTimeNs / 1e9,
	}
	if htlc.Failure != nil {
		attempt.Failure = htlc.Failure.Code.String()
	}
	if route := htlc.Route; route != nil {
		attempt.Route = lnclient.Route{
			TotalTimeLock: route.TotalTimeLock,
			TotalFeesSat:  lnclient.MsatToSat(route.TotalFeesMsat),
			TotalAmtSat:   lnclient.MsatToSat(route.TotalAmtMsat),
			Hops:          make([]lnclient.Hop, 0, len(route.Hops)),
		}
		for _, hop := range route.Hops {
			attempt.Route.Hops = append(attempt.Route.Hops, lnclient.Hop{
				Pubkey:       hop.PubKey,
				ChanId:       lnclient.ShortChannelID(hop.ChanId),
				AmountFwdSat: lnclient.MsatToSat(hop.AmtToForwardMsat),
				FeeSat:       lnclient.MsatToSat(hop.FeeMsat),
				Expiry:       hop.Expiry,
			})
		}
	}
	return attempt
}

func (svc *LNDService) ListInvoices(ctx context.Context) ([]lnclient.CustomInvoice, error) {
	resp, err := svc.client.ListInvoices(ctx, &lnrpc.ListInvoiceRequest{
		NumMaxInvoices: 1000,
		Reversed:       true,
	})
	if err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch invoices")
		return nil, mapGrpcError(err, lnclient.ErrKindInvoice, "failed to list invoices")
	}

	invoices := make([]lnclient.CustomInvoice, 0, len(resp.Invoices))
	for _, invoice := range resp.Invoices {
		invoices = append(invoices, lndInvoiceToCustomInvoice(invoice))
	}
	return invoices, nil
}

func (svc *LNDService) GetInvoiceDetails(ctx context.Context, paymentHash string) (*lnclient.CustomInvoice, error) {
	rHash, err := hex.DecodeString(paymentHash)
	if err != nil {
		return nil, lnclient.ParseError(err, "invalid payment hash %q", paymentHash)
	}
	invoice, err := svc.client.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: rHash})
	if err != nil {
		return nil, mapGrpcError(err, lnclient.ErrKindInvoice, "failed to look up invoice %s", paymentHash)
	}
	custom := lndInvoiceToCustomInvoice(invoice)
	return &custom, nil
}

func lndInvoiceToCustomInvoice(invoice *lnrpc.Invoice) lnclient.CustomInvoice {
	var state lnclient.InvoiceState
	switch invoice.State {
	case lnrpc.Invoice_SETTLED:
		state = lnclient.InvoiceStateSettled
	case lnrpc.Invoice_CANCELED:
		state = lnclient.InvoiceStateCancelled
	case lnrpc.Invoice_ACCEPTED:
		state = lnclient.InvoiceStateAccepted
	default:
		state = lnclient.InvoiceStateOpen
		if invoice.CreationDate+invoice.Expiry < time.Now().Unix() {
			state = lnclient.InvoiceStateExpired
		}
	}

	var preimage string
	if len(invoice.RPreimage) > 0 {
		preimage = hex.EncodeToString(invoice.RPreimage)
	}

	featureBits := make(map[uint32]bool, len(invoice.Features))
	for bit := range invoice.Features {
		featureBits[bit] = true
	}

	custom := lnclient.CustomInvoice{
		Memo:           invoice.Memo,
		PaymentHash:    hex.EncodeToString(invoice.RHash),
		Preimage:       preimage,
		ValueSat:       lnclient.MsatToSat(invoice.ValueMsat),
		ValueMsat:      lnclient.SatOrZero(invoice.ValueMsat),
		State:          state,
		CreationDate:   invoice.CreationDate,
		SettleDate:     invoice.SettleDate,
		ExpirySeconds:  invoice.Expiry,
		PaymentRequest: invoice.PaymentRequest,
		Features:       lnclient.FeaturesFromBits(featureBits),
	}

	for _, htlc := range invoice.Htlcs {
		custom.Htlcs = append(custom.Htlcs, lnclient.InvoiceHtlc{
			ChanId:       lnclient.ShortChannelID(htlc.ChanId),
			HtlcIndex:    htlc.HtlcIndex,
			AmountMsat:   htlc.AmtMsat,
			AcceptTime:   htlc.AcceptTime,
			ResolveTime:  htlc.ResolveTime,
			ExpiryHeight: htlc.ExpiryHeight,
		})
	}

	return custom
}

// StreamEvents subscribes to channel and invoice updates and merges both
// into a single raw event stream. The returned channel is closed when ctx
// is cancelled or both subscriptions terminate.
func (svc *LNDService) StreamEvents(ctx context.Context) (<-chan lnclient.RawEvent, error) {
	out := make(chan lnclient.RawEvent)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		svc.subscribeChannelEvents(ctx, out)
	}()
	go func() {
		defer wg.Done()
		svc.subscribeInvoices(ctx, out)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (svc *LNDService) subscribeChannelEvents(ctx context.Context, out chan<- lnclient.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			channelEvents, err := svc.client.SubscribeChannelEvents(ctx, &lnrpc.ChannelEventSubscription{})
			if err != nil {
				svc.logger.Error().Err(err).Msg("Error subscribing to channel events")
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Second):
					continue
				}
			}
		channelEventsLoop:
			for {
				event, err := channelEvents.Recv()
				if err != nil {
					if err == io.EOF {
						svc.logger.Info().Msg("Channel event stream ended")
						return
					}
					svc.logger.Error().Err(err).Msg("Failed to receive channel event")
					select {
					case <-ctx.Done():
						return
					case <-time.After(2 * time.Second):
						break channelEventsLoop
					}
				}

				switch update := event.Channel.(type) {
				case *lnrpc.ChannelEventUpdate_OpenChannel:
					channel := update.OpenChannel
					svc.logger.Info().
						Str("counterparty_node_id", channel.RemotePubkey).
						Int64("capacity", channel.Capacity).
						Msg("Channel opened")
					raw := lnclient.LndChannelOpened{
						Active:                channel.Active,
						RemotePubkey:          channel.RemotePubkey,
						ChannelPoint:          channel.ChannelPoint,
						ChanId:                channel.ChanId,
						Capacity:              channel.Capacity,
						LocalBalance:          channel.LocalBalance,
						RemoteBalance:         channel.RemoteBalance,
						TotalSatoshisSent:     channel.TotalSatoshisSent,
						TotalSatoshisReceived: channel.TotalSatoshisReceived,
					}
					select {
					case out <- raw:
					case <-ctx.Done():
						return
					}
				case *lnrpc.ChannelEventUpdate_ClosedChannel:
					channel := update.ClosedChannel
					svc.logger.Info().
						Str("counterparty_node_id", channel.RemotePubkey).
						Str("reason", channel.CloseType.String()).
						Msg("Channel closed")
					raw := lnclient.LndChannelClosed{
						ChannelPoint:      channel.ChannelPoint,
						ChanId:            channel.ChanId,
						ChainHash:         channel.ChainHash,
						ClosingTxHash:     channel.ClosingTxHash,
						RemotePubkey:      channel.RemotePubkey,
						Capacity:          channel.Capacity,
						CloseHeight:       channel.CloseHeight,
						SettledBalance:    channel.SettledBalance,
						TimeLockedBalance: channel.TimeLockedBalance,
						CloseType:         channel.CloseType.String(),
						OpenInitiator:     channel.OpenInitiator.String(),
						CloseInitiator:    channel.CloseInitiator.String(),
					}
					select {
					case out <- raw:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}

func (svc *LNDService) subscribeInvoices(ctx context.Context, out chan<- lnclient.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			invoiceEvents, err := svc.client.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
			if err != nil {
				svc.logger.Error().Err(err).Msg("Error subscribing to invoice events")
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Second):
					continue
				}
			}
		invoiceEventsLoop:
			for {
				invoice, err := invoiceEvents.Recv()
				if err != nil {
					if err == io.EOF {
						svc.logger.Info().Msg("Invoice event stream ended")
						return
					}
					svc.logger.Error().Err(err).Msg("Failed to receive invoice event")
					select {
					case <-ctx.Done():
						return
					case <-time.After(2 * time.Second):
						break invoiceEventsLoop
					}
				}

				raw := lndInvoiceToRawEvent(invoice)
				if raw == nil {
					continue
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func lndInvoiceToRawEvent(invoice *lnrpc.Invoice) lnclient.RawEvent {
	details := lnclient.LndInvoiceDetails{
		Preimage:       invoice.RPreimage,
		Hash:           invoice.RHash,
		ValueMsat:      invoice.ValueMsat,
		Memo:           invoice.Memo,
		CreationDate:   invoice.CreationDate,
		PaymentRequest: invoice.PaymentRequest,
	}

	switch invoice.State {
	case lnrpc.Invoice_OPEN:
		return lnclient.LndInvoiceCreated{LndInvoiceDetails: details}
	case lnrpc.Invoice_SETTLED:
		return lnclient.LndInvoiceSettled{
			LndInvoiceDetails: details,
			SettleDate:        invoice.SettleDate,
			AmtPaidMsat:       invoice.AmtPaidMsat,
			SettleIndex:       invoice.SettleIndex,
		}
	case lnrpc.Invoice_CANCELED:
		return lnclient.LndInvoiceCancelled{LndInvoiceDetails: details}
	case lnrpc.Invoice_ACCEPTED:
		return lnclient.LndInvoiceAccepted{
			LndInvoiceDetails: details,
			AmtPaidMsat:       invoice.AmtPaidMsat,
		}
	}
	return nil
}

func (svc *LNDService) Shutdown() error {
	svc.logger.Info().Msg("Shutting down LND client")
	return svc.client.Close()
}

func mapGrpcError(err error, kind lnclient.ErrorKind, format string, args ...interface{}) *lnclient.Error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return lnclient.NotFoundError(format, args...)
		case codes.Unavailable, codes.DeadlineExceeded:
			return lnclient.ConnectionError(err, format, args...)
		}
	}
	return &lnclient.Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
