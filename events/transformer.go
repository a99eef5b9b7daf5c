package events

import (
	"encoding/hex"
	"fmt"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

// Transform maps a raw backend event to its canonical form. It is a pure
// function: the same raw event always yields the same canonical event.
// Variants without a dedicated mapping collapse into a generic invoice
// event rather than being dropped.
func Transform(raw lnclient.RawEvent) Event {
	switch e := raw.(type) {
	case lnclient.LndChannelOpened:
		return Event{
			EventType:   constants.EVENT_TYPE_CHANNEL_OPENED,
			Severity:    constants.SEVERITY_INFO,
			Title:       "Channel Opened",
			Description: fmt.Sprintf("Channel with %s opened with capacity %d sats", e.RemotePubkey, e.Capacity),
			Data: map[string]interface{}{
				"active":                  e.Active,
				"remote_pubkey":           e.RemotePubkey,
				"channel_point":           e.ChannelPoint,
				"chan_id":                 e.ChanId,
				"capacity":                e.Capacity,
				"local_balance":           e.LocalBalance,
				"remote_balance":          e.RemoteBalance,
				"total_satoshis_sent":     e.TotalSatoshisSent,
				"total_satoshis_received": e.TotalSatoshisReceived,
			},
		}
	case lnclient.LndChannelClosed:
		return Event{
			EventType:   constants.EVENT_TYPE_CHANNEL_CLOSED,
			Severity:    constants.SEVERITY_WARNING,
			Title:       "Channel Closed",
			Description: fmt.Sprintf("Channel with %s closed: %s", e.RemotePubkey, e.CloseType),
			Data: map[string]interface{}{
				"channel_point":       e.ChannelPoint,
				"chan_id":             e.ChanId,
				"chain_hash":          e.ChainHash,
				"closing_tx_hash":     e.ClosingTxHash,
				"remote_pubkey":       e.RemotePubkey,
				"capacity":            e.Capacity,
				"close_height":        e.CloseHeight,
				"settled_balance":     e.SettledBalance,
				"time_locked_balance": e.TimeLockedBalance,
				"close_type":          e.CloseType,
				"open_initiator":      e.OpenInitiator,
				"close_initiator":     e.CloseInitiator,
			},
		}
	case lnclient.LndInvoiceSettled:
		data := invoiceData(e.LndInvoiceDetails)
		data["settle_date"] = e.SettleDate
		data["amt_paid_msat"] = e.AmtPaidMsat
		data["settle_index"] = e.SettleIndex
		return Event{
			EventType:   constants.EVENT_TYPE_INVOICE_SETTLED,
			Severity:    constants.SEVERITY_INFO,
			Title:       "Invoice Settled",
			Description: fmt.Sprintf("Invoice for %d sats settled", lnclient.MsatToSat(e.AmtPaidMsat)),
			Data:        data,
		}
	case lnclient.LndInvoiceCreated:
		return genericInvoiceEvent(invoiceData(e.LndInvoiceDetails))
	case lnclient.LndInvoiceCancelled:
		return genericInvoiceEvent(invoiceData(e.LndInvoiceDetails))
	case lnclient.LndInvoiceAccepted:
		data := invoiceData(e.LndInvoiceDetails)
		data["amt_paid_msat"] = e.AmtPaidMsat
		return genericInvoiceEvent(data)
	case lnclient.ClnChannelOpened:
		return Event{
			EventType:   constants.EVENT_TYPE_CHANNEL_OPENED,
			Severity:    constants.SEVERITY_INFO,
			Title:       "Channel Opened",
			Description: fmt.Sprintf("Channel with %s opened with capacity %d sats", e.PeerPubkey, e.FundingMsat/1000),
			Data: map[string]interface{}{
				"peer_pubkey":   e.PeerPubkey,
				"funding_msat":  e.FundingMsat,
				"funding_txid":  e.FundingTxid,
				"channel_ready": e.ChannelReady,
			},
		}
	}
	return genericInvoiceEvent(map[string]interface{}{})
}

func genericInvoiceEvent(data map[string]interface{}) Event {
	return Event{
		EventType:   constants.EVENT_TYPE_INVOICE_CREATED,
		Severity:    constants.SEVERITY_INFO,
		Title:       "Lightning Event",
		Description: "Lightning node event received",
		Data:        data,
	}
}

func invoiceData(details lnclient.LndInvoiceDetails) map[string]interface{} {
	return map[string]interface{}{
		"preimage":        hex.EncodeToString(details.Preimage),
		"hash":            hex.EncodeToString(details.Hash),
		"value_msat":      details.ValueMsat,
		"memo":            details.Memo,
		"creation_date":   details.CreationDate,
		"payment_request": details.PaymentRequest,
	}
}
