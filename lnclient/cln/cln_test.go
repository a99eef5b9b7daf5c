package cln

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

func TestParseClnShortChannelID(t *testing.T) {
	id, err := parseClnShortChannelID("840000x1234x1")
	require.NoError(t, err)
	assert.Equal(t, lnclient.NewShortChannelID(840000, 1234, 1), id)

	for _, bad := range []string{"", "840000x1234", "ax1x2", "1x2x3x4", "1xbx3"} {
		_, err := parseClnShortChannelID(bad)
		require.Error(t, err, bad)
		assert.True(t, lnclient.IsKind(err, lnclient.ErrKindParse), bad)
	}
}

func TestNodeInfoFromGetInfo(t *testing.T) {
	info := clnGetInfo{Id: "02aa", Alias: "carol", Network: "bitcoin"}

	nodeInfo, err := nodeInfoFromGetInfo(lnclient.NewNodeIdFromPubkey("02aa"), info)
	require.NoError(t, err)
	assert.Equal(t, "02aa", nodeInfo.Pubkey)
	assert.Equal(t, "carol", nodeInfo.Alias)

	// connecting to a node on an unknown chain fails up front
	info.Network = "litecoin"
	_, err = nodeInfoFromGetInfo(lnclient.NewNodeIdFromPubkey("02aa"), info)
	require.Error(t, err)
	assert.True(t, lnclient.IsKind(err, lnclient.ErrKindParse))

	info.Network = "regtest"
	_, err = nodeInfoFromGetInfo(lnclient.NewNodeIdFromPubkey("03bb"), info)
	require.Error(t, err)
}

func TestPeerChannelToSummarySkipsBadScid(t *testing.T) {
	good := clnPeerChannel{
		PeerId:         "02aa",
		State:          "CHANNELD_NORMAL",
		ShortChannelId: "840000x1x0",
		TotalMsat:      100_000_000,
		ToUsMsat:       40_000_000,
	}
	summary, err := peerChannelToSummary(good)
	require.NoError(t, err)
	assert.Equal(t, lnclient.ChannelStateActive, summary.State)
	assert.Equal(t, uint64(100_000), summary.CapacitySat)
	assert.Equal(t, uint64(40_000), summary.LocalBalanceSat)
	assert.Equal(t, uint64(60_000), summary.RemoteBalanceSat)

	bad := good
	bad.ShortChannelId = "notxaxscid"
	_, err = peerChannelToSummary(bad)
	require.Error(t, err)

	// a channel without a scid yet (still pending) is not an error
	pending := good
	pending.ShortChannelId = ""
	pending.State = "OPENINGD"
	summary, err = peerChannelToSummary(pending)
	require.NoError(t, err)
	assert.Equal(t, lnclient.ChannelStateOpening, summary.State)
}

func TestClnChannelState(t *testing.T) {
	assert.Equal(t, lnclient.ChannelStateActive, clnChannelState("CHANNELD_NORMAL"))
	assert.Equal(t, lnclient.ChannelStateOpening, clnChannelState("CHANNELD_AWAITING_LOCKIN"))
	assert.Equal(t, lnclient.ChannelStateClosing, clnChannelState("CLOSINGD_SIGEXCHANGE"))
	assert.Equal(t, lnclient.ChannelStateClosed, clnChannelState("ONCHAIN"))
	assert.Equal(t, lnclient.ChannelStateDisabled, clnChannelState("weird"))
}

func TestClnPayToSummary(t *testing.T) {
	summary := clnPayToSummary(clnPay{
		PaymentHash:    "deadbeef",
		Status:         "complete",
		AmountMsat:     21_999,
		AmountSentMsat: 23_999,
		CreatedAt:      1700000000,
		CompletedAt:    1700000002,
	})
	assert.Equal(t, lnclient.PaymentStateSettled, summary.State)
	assert.Equal(t, uint64(21), summary.AmountSat)
	assert.Equal(t, uint64(2), summary.RoutingFeeSat)

	assert.Equal(t, lnclient.PaymentStateFailed, clnPayToSummary(clnPay{Status: "failed"}).State)
	assert.Equal(t, lnclient.PaymentStateInflight, clnPayToSummary(clnPay{Status: "pending"}).State)
}

func TestClnInvoiceToCustomInvoice(t *testing.T) {
	paid := clnInvoiceToCustomInvoice(clnInvoice{
		Description:     "coffee",
		PaymentHash:     "deadbeef",
		PaymentPreimage: "aabb",
		AmountMsat:      1999,
		Status:          "paid",
		PaidAt:          1700000000,
	})
	assert.Equal(t, lnclient.InvoiceStateSettled, paid.State)
	assert.Equal(t, uint64(1), paid.ValueSat)
	assert.Equal(t, "aabb", paid.Preimage)

	assert.Equal(t, lnclient.InvoiceStateExpired, clnInvoiceToCustomInvoice(clnInvoice{Status: "expired"}).State)
	assert.Equal(t, lnclient.InvoiceStateExpired, clnInvoiceToCustomInvoice(clnInvoice{Status: "unpaid", ExpiresAt: 1}).State)
}

func newTestService(t *testing.T, handler http.HandlerFunc) *CLNService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &CLNService{
		client:   &rpcClient{url: server.URL, httpClient: server.Client()},
		nodeInfo: &lnclient.NodeInfo{Pubkey: "02aa", Alias: "test"},
	}
}

func TestGetNodeInfoOverRpc(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "listnodes", req.Method)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"nodes": []map[string]interface{}{
					// bit 1 and bit 11 set
					{"nodeid": "03bb", "alias": "carol", "features": "0802"},
				},
			},
		})
	})

	info, err := svc.GetNodeInfo(context.Background(), "03bb")
	require.NoError(t, err)
	assert.Equal(t, "carol", info.Alias)
	assert.Equal(t, []uint32{1, 11}, info.Features)
}

func TestGetNodeInfoNotFound(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"nodes": []interface{}{}},
		})
	})

	_, err := svc.GetNodeInfo(context.Background(), "03bb")
	require.Error(t, err)
	assert.True(t, lnclient.IsKind(err, lnclient.ErrKindNotFound))
}

func TestRpcErrorIsSurfaced(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": -32601, "message": "unknown method"},
		})
	})

	_, err := svc.ListPayments(context.Background())
	require.Error(t, err)
	assert.True(t, lnclient.IsKind(err, lnclient.ErrKindRpc))
}

func TestListChannelsSkipsUnparseableEntries(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"channels": []map[string]interface{}{
					{"peer_id": "02aa", "state": "CHANNELD_NORMAL", "short_channel_id": "840000x1x0", "total_msat": 1000000, "to_us_msat": 500000},
					{"peer_id": "03bb", "state": "CHANNELD_NORMAL", "short_channel_id": "garbage", "total_msat": 1000000, "to_us_msat": 500000},
					{"peer_id": "03cc", "state": "CHANNELD_NORMAL", "short_channel_id": "840001x2x1", "total_msat": 2000000, "to_us_msat": 500000},
				},
			},
		})
	})

	channels, err := svc.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "02aa", channels[0].RemotePubkey)
	assert.Equal(t, "03cc", channels[1].RemotePubkey)
}
