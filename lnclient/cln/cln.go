package cln

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/logger"
)

type CLNService struct {
	client   *rpcClient
	nodeInfo *lnclient.NodeInfo
	logger   zerolog.Logger
}

// NewCLNService connects to a CLN node over mutual-TLS JSON-RPC, verifies
// its identity against the expected one and caches it.
func NewCLNService(ctx context.Context, conn lnclient.ClnConnection) (lnclient.LNClient, error) {
	client, err := newRpcClient(conn)
	if err != nil {
		return nil, err
	}

	var info clnGetInfo
	maxRetries := 5
	for i := range maxRetries {
		err = client.call(ctx, "getinfo", nil, &info)
		if err == nil {
			break
		}
		logger.Logger.Error().Err(err).
			Int("iteration", i).
			Msg("Failed to connect to CLN, retrying in 2s")

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, lnclient.ConnectionError(ctx.Err(), "cancelled while connecting to cln")
		}
	}
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to connect to CLN on final attempt, not attempting further retries")
		return nil, err
	}

	nodeInfo, err := nodeInfoFromGetInfo(conn.Id, info)
	if err != nil {
		return nil, err
	}

	svc := &CLNService{
		client:   client,
		nodeInfo: nodeInfo,
		logger:   logger.Logger.With().Str("backend", "CLN").Str("node", info.Id).Logger(),
	}

	svc.logger.Info().Str("alias", info.Alias).Msg("Connected to CLN")

	return svc, nil
}

// nodeInfoFromGetInfo checks the getinfo response against the expected
// identity and rejects nodes running on a chain we do not recognize.
func nodeInfoFromGetInfo(id lnclient.NodeId, info clnGetInfo) (*lnclient.NodeInfo, error) {
	if err := id.Validate(info.Id, info.Alias); err != nil {
		return nil, err
	}
	if _, err := lnclient.ParseNetwork(info.Network); err != nil {
		return nil, err
	}
	return &lnclient.NodeInfo{
		Pubkey:   info.Id,
		Alias:    info.Alias,
		Features: lnclient.FeaturesFromHex(info.OurFeatures.Node),
	}, nil
}

type clnGetInfo struct {
	Id          string `json:"id"`
	Alias       string `json:"alias"`
	Network     string `json:"network"`
	OurFeatures struct {
		Node string `json:"node"`
	} `json:"our_features"`
}

type clnNode struct {
	NodeId   string `json:"nodeid"`
	Alias    string `json:"alias"`
	Features string `json:"features"`
}

type clnPeerChannel struct {
	PeerId         string `json:"peer_id"`
	State          string `json:"state"`
	ShortChannelId string `json:"short_channel_id"`
	TotalMsat      uint64 `json:"total_msat"`
	ToUsMsat       uint64 `json:"to_us_msat"`
	Private        bool   `json:"private"`
	FundingTxid    string `json:"funding_txid"`
}

type clnHalfChannel struct {
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	ShortChannelId  string `json:"short_channel_id"`
	AmountMsat      uint64 `json:"amount_msat"`
	BaseFeeMillisat uint64 `json:"base_fee_millisatoshi"`
	FeePerMillionth uint64 `json:"fee_per_millionth"`
	HtlcMinimumMsat uint64 `json:"htlc_minimum_msat"`
	HtlcMaximumMsat uint64 `json:"htlc_maximum_msat"`
	Delay           uint32 `json:"delay"`
	Active          bool   `json:"active"`
	LastUpdate      uint64 `json:"last_update"`
}

type clnPay struct {
	PaymentHash    string `json:"payment_hash"`
	Status         string `json:"status"`
	Destination    string `json:"destination"`
	AmountMsat     uint64 `json:"amount_msat"`
	AmountSentMsat uint64 `json:"amount_sent_msat"`
	CreatedAt      int64  `json:"created_at"`
	CompletedAt    int64  `json:"completed_at"`
	Bolt11         string `json:"bolt11"`
	Description    string `json:"description"`
}

type clnSendPay struct {
	PartId         uint64 `json:"partid"`
	Status         string `json:"status"`
	AmountMsat     uint64 `json:"amount_msat"`
	AmountSentMsat uint64 `json:"amount_sent_msat"`
	CreatedAt      int64  `json:"created_at"`
	CompletedAt    int64  `json:"completed_at"`
}

type clnInvoice struct {
	Label           string `json:"label"`
	Description     string `json:"description"`
	PaymentHash     string `json:"payment_hash"`
	PaymentPreimage string `json:"payment_preimage"`
	AmountMsat      uint64 `json:"amount_msat"`
	Status          string `json:"status"`
	Bolt11          string `json:"bolt11"`
	ExpiresAt       int64  `json:"expires_at"`
	PaidAt          int64  `json:"paid_at"`
	CreatedIndex    uint64 `json:"created_index"`
}

// parseClnShortChannelID parses CLN's "block x tx x output" form, e.g.
// "840000x1234x1".
func parseClnShortChannelID(scid string) (lnclient.ShortChannelID, error) {
	parts := strings.Split(scid, "x")
	if len(parts) != 3 {
		return 0, lnclient.ParseError(nil, "invalid short channel id %q", scid)
	}
	block, err := strconv.ParseUint(parts[0], 10, 24)
	if err != nil {
		return 0, lnclient.ParseError(err, "invalid short channel id %q", scid)
	}
	tx, err := strconv.ParseUint(parts[1], 10, 24)
	if err != nil {
		return 0, lnclient.ParseError(err, "invalid short channel id %q", scid)
	}
	output, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return 0, lnclient.ParseError(err, "invalid short channel id %q", scid)
	}
	return lnclient.NewShortChannelID(uint32(block), uint32(tx), uint16(output)), nil
}

func (svc *CLNService) GetInfo() *lnclient.NodeInfo {
	return svc.nodeInfo
}

func (svc *CLNService) GetNetwork(ctx context.Context) (lnclient.Network, error) {
	var info clnGetInfo
	if err := svc.client.call(ctx, "getinfo", nil, &info); err != nil {
		return "", err
	}
	return lnclient.ParseNetwork(info.Network)
}

func (svc *CLNService) GetNodeInfo(ctx context.Context, pubkey string) (*lnclient.NodeInfo, error) {
	var resp struct {
		Nodes []clnNode `json:"nodes"`
	}
	if err := svc.client.call(ctx, "listnodes", map[string]string{"id": pubkey}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Nodes) == 0 {
		return nil, lnclient.NotFoundError("node %s not found in graph", pubkey)
	}
	node := resp.Nodes[0]
	return &lnclient.NodeInfo{
		Pubkey:   node.NodeId,
		Alias:    node.Alias,
		Features: lnclient.FeaturesFromHex(node.Features),
	}, nil
}

func (svc *CLNService) ListChannels(ctx context.Context) ([]lnclient.ChannelSummary, error) {
	var resp struct {
		Channels []clnPeerChannel `json:"channels"`
	}
	if err := svc.client.call(ctx, "listpeerchannels", nil, &resp); err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch channels")
		return nil, err
	}

	channels := make([]lnclient.ChannelSummary, 0, len(resp.Channels))
	for _, channel := range resp.Channels {
		summary, err := peerChannelToSummary(channel)
		if err != nil {
			// one unparseable channel must not hide the rest
			svc.logger.Warn().Err(err).
				Str("peer", channel.PeerId).
				Msg("Skipping channel with unparseable short channel id")
			continue
		}
		channels = append(channels, summary)
	}
	return channels, nil
}

func peerChannelToSummary(channel clnPeerChannel) (lnclient.ChannelSummary, error) {
	var chanId lnclient.ShortChannelID
	if channel.ShortChannelId != "" {
		var err error
		chanId, err = parseClnShortChannelID(channel.ShortChannelId)
		if err != nil {
			return lnclient.ChannelSummary{}, err
		}
	}

	localSat := channel.ToUsMsat / 1000
	totalSat := channel.TotalMsat / 1000
	remoteSat := uint64(0)
	if totalSat > localSat {
		remoteSat = totalSat - localSat
	}

	return lnclient.ChannelSummary{
		ChanId:           chanId,
		State:            clnChannelState(channel.State),
		Private:          channel.Private,
		RemotePubkey:     channel.PeerId,
		CapacitySat:      totalSat,
		LocalBalanceSat:  localSat,
		RemoteBalanceSat: remoteSat,
	}, nil
}

func clnChannelState(state string) lnclient.ChannelState {
	switch state {
	case "CHANNELD_NORMAL":
		return lnclient.ChannelStateActive
	case "OPENINGD", "CHANNELD_AWAITING_LOCKIN", "DUALOPEND_OPEN_INIT", "DUALOPEND_AWAITING_LOCKIN":
		return lnclient.ChannelStateOpening
	case "CHANNELD_SHUTTING_DOWN", "CLOSINGD_SIGEXCHANGE", "CLOSINGD_COMPLETE", "AWAITING_UNILATERAL":
		return lnclient.ChannelStateClosing
	case "FUNDING_SPEND_SEEN", "ONCHAIN", "CLOSED":
		return lnclient.ChannelStateClosed
	}
	return lnclient.ChannelStateDisabled
}

func (svc *CLNService) GetChannelInfo(ctx context.Context, chanId lnclient.ShortChannelID) (*lnclient.ChannelDetails, error) {
	scid := strconv.FormatUint(uint64(chanId.Block()), 10) + "x" +
		strconv.FormatUint(uint64(chanId.TxIndex()), 10) + "x" +
		strconv.FormatUint(uint64(chanId.OutputIndex()), 10)

	var resp struct {
		Channels []clnHalfChannel `json:"channels"`
	}
	if err := svc.client.call(ctx, "listchannels", map[string]string{"short_channel_id": scid}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Channels) == 0 {
		return nil, lnclient.NotFoundError("channel %s not found in graph", chanId)
	}

	details := &lnclient.ChannelDetails{
		ChanId:      chanId,
		CapacitySat: resp.Channels[0].AmountMsat / 1000,
	}
	for _, half := range resp.Channels {
		policy := &lnclient.NodePolicy{
			Pubkey:        half.Source,
			FeeBaseMsat:   half.BaseFeeMillisat,
			FeeRateMsat:   half.FeePerMillionth,
			MinHtlcMsat:   half.HtlcMinimumMsat,
			MaxHtlcMsat:   half.HtlcMaximumMsat,
			TimeLockDelta: half.Delay,
			Disabled:      !half.Active,
			LastUpdate:    half.LastUpdate,
		}
		// node1 is always the lexicographically smaller pubkey
		if half.Source < half.Destination {
			details.Node1Policy = policy
		} else {
			details.Node2Policy = policy
		}
	}
	return details, nil
}

func (svc *CLNService) ListPayments(ctx context.Context) ([]lnclient.PaymentSummary, error) {
	var resp struct {
		Pays []clnPay `json:"pays"`
	}
	if err := svc.client.call(ctx, "listpays", nil, &resp); err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch payments")
		return nil, err
	}

	payments := make([]lnclient.PaymentSummary, 0, len(resp.Pays))
	for _, pay := range resp.Pays {
		payments = append(payments, clnPayToSummary(pay))
	}
	return payments, nil
}

func (svc *CLNService) GetPaymentDetails(ctx context.Context, paymentHash string) (*lnclient.PaymentDetails, error) {
	var resp struct {
		Pays []clnPay `json:"pays"`
	}
	if err := svc.client.call(ctx, "listpays", map[string]string{"payment_hash": paymentHash}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pays) == 0 {
		return nil, lnclient.NotFoundError("payment %s not found", paymentHash)
	}
	pay := resp.Pays[0]

	details := &lnclient.PaymentDetails{
		PaymentSummary:    clnPayToSummary(pay),
		DestinationPubkey: pay.Destination,
		Description:       pay.Description,
	}

	// CLN keeps per-part records in listsendpays; routes are not exposed
	var parts struct {
		Payments []clnSendPay `json:"payments"`
	}
	if err := svc.client.call(ctx, "listsendpays", map[string]string{"payment_hash": paymentHash}, &parts); err == nil {
		for _, part := range parts.Payments {
			feeSat := uint64(0)
			if part.AmountSentMsat > part.AmountMsat {
				feeSat = (part.AmountSentMsat - part.AmountMsat) / 1000
			}
			details.Htlcs = append(details.Htlcs, lnclient.PaymentHtlc{
				AttemptId:   part.PartId,
				AttemptTime: part.CreatedAt,
				ResolveTime: part.CompletedAt,
				Route: lnclient.Route{
					TotalAmtSat:  part.AmountSentMsat / 1000,
					TotalFeesSat: feeSat,
				},
			})
		}
	}

	return details, nil
}

func clnPayToSummary(pay clnPay) lnclient.PaymentSummary {
	var state lnclient.PaymentState
	switch pay.Status {
	case "complete":
		state = lnclient.PaymentStateSettled
	case "failed":
		state = lnclient.PaymentStateFailed
	default:
		state = lnclient.PaymentStateInflight
	}

	feeSat := uint64(0)
	if pay.AmountSentMsat > pay.AmountMsat {
		feeSat = (pay.AmountSentMsat - pay.AmountMsat) / 1000
	}

	return lnclient.PaymentSummary{
		PaymentHash:   pay.PaymentHash,
		State:         state,
		AmountSat:     pay.AmountMsat / 1000,
		RoutingFeeSat: feeSat,
		Invoice:       pay.Bolt11,
		CreatedAt:     pay.CreatedAt,
		ResolvedAt:    pay.CompletedAt,
	}
}

func (svc *CLNService) ListInvoices(ctx context.Context) ([]lnclient.CustomInvoice, error) {
	var resp struct {
		Invoices []clnInvoice `json:"invoices"`
	}
	if err := svc.client.call(ctx, "listinvoices", nil, &resp); err != nil {
		svc.logger.Error().Err(err).Msg("Failed to fetch invoices")
		return nil, err
	}

	invoices := make([]lnclient.CustomInvoice, 0, len(resp.Invoices))
	for _, invoice := range resp.Invoices {
		invoices = append(invoices, clnInvoiceToCustomInvoice(invoice))
	}
	return invoices, nil
}

func (svc *CLNService) GetInvoiceDetails(ctx context.Context, paymentHash string) (*lnclient.CustomInvoice, error) {
	var resp struct {
		Invoices []clnInvoice `json:"invoices"`
	}
	if err := svc.client.call(ctx, "listinvoices", map[string]string{"payment_hash": paymentHash}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Invoices) == 0 {
		return nil, lnclient.NotFoundError("invoice %s not found", paymentHash)
	}
	invoice := clnInvoiceToCustomInvoice(resp.Invoices[0])
	return &invoice, nil
}

func clnInvoiceToCustomInvoice(invoice clnInvoice) lnclient.CustomInvoice {
	var state lnclient.InvoiceState
	switch invoice.Status {
	case "paid":
		state = lnclient.InvoiceStateSettled
	case "expired":
		state = lnclient.InvoiceStateExpired
	default:
		state = lnclient.InvoiceStateOpen
		if invoice.ExpiresAt > 0 && invoice.ExpiresAt < time.Now().Unix() {
			state = lnclient.InvoiceStateExpired
		}
	}

	expirySeconds := int64(0)
	if invoice.ExpiresAt > 0 {
		expirySeconds = invoice.ExpiresAt - time.Now().Unix()
		if expirySeconds < 0 {
			expirySeconds = 0
		}
	}

	return lnclient.CustomInvoice{
		Memo:           invoice.Description,
		PaymentHash:    invoice.PaymentHash,
		Preimage:       invoice.PaymentPreimage,
		ValueSat:       invoice.AmountMsat / 1000,
		ValueMsat:      invoice.AmountMsat,
		State:          state,
		SettleDate:     invoice.PaidAt,
		ExpirySeconds:  expirySeconds,
		PaymentRequest: invoice.Bolt11,
	}
}

// StreamEvents polls the peer channel list and emits an event whenever a
// channel reaches the normal state that was not there on the previous
// poll. CLN pushes notifications only to plugins, so polling is how an
// external observer watches it.
func (svc *CLNService) StreamEvents(ctx context.Context) (<-chan lnclient.RawEvent, error) {
	known := make(map[string]bool)

	// seed with the current channel set so only genuinely new channels
	// produce events
	var resp struct {
		Channels []clnPeerChannel `json:"channels"`
	}
	if err := svc.client.call(ctx, "listpeerchannels", nil, &resp); err != nil {
		return nil, lnclient.StreamingError(err, "failed to fetch initial channel list")
	}
	for _, channel := range resp.Channels {
		known[channel.FundingTxid] = true
	}

	out := make(chan lnclient.RawEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			var resp struct {
				Channels []clnPeerChannel `json:"channels"`
			}
			if err := svc.client.call(ctx, "listpeerchannels", nil, &resp); err != nil {
				svc.logger.Error().Err(err).Msg("Failed to poll channels")
				continue
			}
			for _, channel := range resp.Channels {
				if known[channel.FundingTxid] {
					continue
				}
				known[channel.FundingTxid] = true
				svc.logger.Info().
					Str("counterparty_node_id", channel.PeerId).
					Msg("Channel opened")
				raw := lnclient.ClnChannelOpened{
					PeerPubkey:   channel.PeerId,
					FundingMsat:  channel.TotalMsat,
					FundingTxid:  channel.FundingTxid,
					ChannelReady: channel.State == "CHANNELD_NORMAL",
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (svc *CLNService) Shutdown() error {
	svc.logger.Info().Msg("Shutting down CLN client")
	svc.client.httpClient.CloseIdleConnections()
	return nil
}
