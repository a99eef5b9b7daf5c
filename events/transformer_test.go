package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

func TestTransformMapping(t *testing.T) {
	tests := []struct {
		name      string
		raw       lnclient.RawEvent
		eventType string
		severity  string
		title     string
	}{
		{
			name:      "lnd channel opened",
			raw:       lnclient.LndChannelOpened{RemotePubkey: "03bb", Capacity: 100000},
			eventType: constants.EVENT_TYPE_CHANNEL_OPENED,
			severity:  constants.SEVERITY_INFO,
			title:     "Channel Opened",
		},
		{
			name:      "lnd channel closed",
			raw:       lnclient.LndChannelClosed{RemotePubkey: "03bb", CloseType: "COOPERATIVE_CLOSE"},
			eventType: constants.EVENT_TYPE_CHANNEL_CLOSED,
			severity:  constants.SEVERITY_WARNING,
			title:     "Channel Closed",
		},
		{
			name:      "lnd invoice settled",
			raw:       lnclient.LndInvoiceSettled{AmtPaidMsat: 21000},
			eventType: constants.EVENT_TYPE_INVOICE_SETTLED,
			severity:  constants.SEVERITY_INFO,
			title:     "Invoice Settled",
		},
		{
			name:      "lnd invoice created falls back to generic",
			raw:       lnclient.LndInvoiceCreated{},
			eventType: constants.EVENT_TYPE_INVOICE_CREATED,
			severity:  constants.SEVERITY_INFO,
			title:     "Lightning Event",
		},
		{
			name:      "lnd invoice cancelled falls back to generic",
			raw:       lnclient.LndInvoiceCancelled{},
			eventType: constants.EVENT_TYPE_INVOICE_CREATED,
			severity:  constants.SEVERITY_INFO,
			title:     "Lightning Event",
		},
		{
			name:      "lnd invoice accepted falls back to generic",
			raw:       lnclient.LndInvoiceAccepted{},
			eventType: constants.EVENT_TYPE_INVOICE_CREATED,
			severity:  constants.SEVERITY_INFO,
			title:     "Lightning Event",
		},
		{
			name:      "cln channel opened",
			raw:       lnclient.ClnChannelOpened{PeerPubkey: "03bb", FundingMsat: 100_000_000},
			eventType: constants.EVENT_TYPE_CHANNEL_OPENED,
			severity:  constants.SEVERITY_INFO,
			title:     "Channel Opened",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Transform(tt.raw)
			assert.Equal(t, tt.eventType, event.EventType)
			assert.Equal(t, tt.severity, event.Severity)
			assert.Equal(t, tt.title, event.Title)
			assert.NotNil(t, event.Data)
		})
	}
}

func TestTransformIsPure(t *testing.T) {
	raw := lnclient.LndInvoiceSettled{
		LndInvoiceDetails: lnclient.LndInvoiceDetails{
			Preimage:  []byte{0xaa, 0xbb},
			Hash:      []byte{0x01, 0x02},
			ValueMsat: 21000,
			Memo:      "coffee",
		},
		AmtPaidMsat: 21000,
		SettleDate:  1700000000,
	}

	first := Transform(raw)
	second := Transform(raw)
	assert.Equal(t, first, second)
}

func TestTransformEncodesBinaryAsLowercaseHex(t *testing.T) {
	event := Transform(lnclient.LndInvoiceSettled{
		LndInvoiceDetails: lnclient.LndInvoiceDetails{
			Preimage: []byte{0xaa, 0xbb},
			Hash:     []byte{0xcd, 0xef},
		},
	})
	assert.Equal(t, "aabb", event.Data["preimage"])
	assert.Equal(t, "cdef", event.Data["hash"])
}
