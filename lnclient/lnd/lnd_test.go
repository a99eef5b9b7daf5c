package lnd

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

const (
	alicePubkey = "02aa000000000000000000000000000000000000000000000000000000000000aa"
	bobPubkey   = "03bb000000000000000000000000000000000000000000000000000000000000bb"
)

func TestChannelEdgeToDetailsOrdersPoliciesByPubkey(t *testing.T) {
	policyA := &lnrpc.RoutingPolicy{FeeBaseMsat: 1000, FeeRateMilliMsat: 1}
	policyB := &lnrpc.RoutingPolicy{FeeBaseMsat: 2000, FeeRateMilliMsat: 2}

	// same edge reported with the endpoints in either order must yield
	// identical details
	ordered := channelEdgeToDetails(&lnrpc.ChannelEdge{
		ChannelId:   123,
		Capacity:    100000,
		Node1Pub:    alicePubkey,
		Node2Pub:    bobPubkey,
		Node1Policy: policyA,
		Node2Policy: policyB,
	})
	reversed := channelEdgeToDetails(&lnrpc.ChannelEdge{
		ChannelId:   123,
		Capacity:    100000,
		Node1Pub:    bobPubkey,
		Node2Pub:    alicePubkey,
		Node1Policy: policyB,
		Node2Policy: policyA,
	})

	require.NotNil(t, ordered.Node1Policy)
	assert.Equal(t, alicePubkey, ordered.Node1Policy.Pubkey)
	assert.Equal(t, uint64(1000), ordered.Node1Policy.FeeBaseMsat)
	assert.Equal(t, bobPubkey, ordered.Node2Policy.Pubkey)
	assert.Equal(t, ordered, reversed)
}

func TestChannelEdgeToDetailsMissingPolicy(t *testing.T) {
	details := channelEdgeToDetails(&lnrpc.ChannelEdge{
		ChannelId: 7,
		Node1Pub:  alicePubkey,
		Node2Pub:  bobPubkey,
	})
	assert.Nil(t, details.Node1Policy)
	assert.Nil(t, details.Node2Policy)
}

func TestLndPaymentToSummary(t *testing.T) {
	summary := lndPaymentToSummary(&lnrpc.Payment{
		PaymentHash:    "deadbeef",
		Status:         lnrpc.Payment_SUCCEEDED,
		ValueMsat:      1999,
		FeeMsat:        2500,
		CreationTimeNs: 1700000000 * 1e9,
		Htlcs: []*lnrpc.HTLCAttempt{
			{ResolveTimeNs: 1700000005 * 1e9},
			{ResolveTimeNs: 1700000003 * 1e9},
		},
	})

	assert.Equal(t, lnclient.PaymentStateSettled, summary.State)
	// sub-satoshi amounts truncate
	assert.Equal(t, uint64(1), summary.AmountSat)
	assert.Equal(t, uint64(2), summary.RoutingFeeSat)
	assert.Equal(t, int64(1700000000), summary.CreatedAt)
	assert.Equal(t, int64(1700000005), summary.ResolvedAt)
}

func TestLndInvoiceStates(t *testing.T) {
	now := time.Now().Unix()

	open := lndInvoiceToCustomInvoice(&lnrpc.Invoice{
		State:        lnrpc.Invoice_OPEN,
		CreationDate: now,
		Expiry:       3600,
	})
	assert.Equal(t, lnclient.InvoiceStateOpen, open.State)

	expired := lndInvoiceToCustomInvoice(&lnrpc.Invoice{
		State:        lnrpc.Invoice_OPEN,
		CreationDate: now - 7200,
		Expiry:       3600,
	})
	assert.Equal(t, lnclient.InvoiceStateExpired, expired.State)

	settled := lndInvoiceToCustomInvoice(&lnrpc.Invoice{
		State:      lnrpc.Invoice_SETTLED,
		RPreimage:  []byte{0xaa, 0xbb},
		RHash:      []byte{0x01, 0x02},
		ValueMsat:  21000,
		SettleDate: now,
	})
	assert.Equal(t, lnclient.InvoiceStateSettled, settled.State)
	assert.Equal(t, "aabb", settled.Preimage)
	assert.Equal(t, "0102", settled.PaymentHash)
	assert.Equal(t, uint64(21), settled.ValueSat)
}

func TestLndInvoiceToRawEvent(t *testing.T) {
	created := lndInvoiceToRawEvent(&lnrpc.Invoice{State: lnrpc.Invoice_OPEN, Memo: "coffee"})
	require.IsType(t, lnclient.LndInvoiceCreated{}, created)
	assert.Equal(t, "coffee", created.(lnclient.LndInvoiceCreated).Memo)

	settled := lndInvoiceToRawEvent(&lnrpc.Invoice{
		State:       lnrpc.Invoice_SETTLED,
		SettleDate:  42,
		AmtPaidMsat: 1500,
	})
	require.IsType(t, lnclient.LndInvoiceSettled{}, settled)
	assert.Equal(t, int64(42), settled.(lnclient.LndInvoiceSettled).SettleDate)

	require.IsType(t, lnclient.LndInvoiceCancelled{}, lndInvoiceToRawEvent(&lnrpc.Invoice{State: lnrpc.Invoice_CANCELED}))
	require.IsType(t, lnclient.LndInvoiceAccepted{}, lndInvoiceToRawEvent(&lnrpc.Invoice{State: lnrpc.Invoice_ACCEPTED}))
}

func TestPendingChannelStates(t *testing.T) {
	channel := &lnrpc.PendingChannelsResponse_PendingChannel{
		RemoteNodePub: bobPubkey,
		Capacity:      50000,
		LocalBalance:  20000,
		RemoteBalance: 30000,
	}

	opening := pendingChannelSummary(channel, lnclient.ChannelStateOpening)
	assert.Equal(t, lnclient.ChannelStateOpening, opening.State)
	assert.Equal(t, uint64(50000), opening.CapacitySat)
	assert.Equal(t, bobPubkey, opening.RemotePubkey)

	closing := pendingChannelSummary(channel, lnclient.ChannelStateClosing)
	assert.Equal(t, lnclient.ChannelStateClosing, closing.State)
}
