package lnclient

// RawEvent is a backend event exactly as the node reported it, before any
// normalization. The set of variants is closed; the transformer switches
// over all of them.
type RawEvent interface {
	isRawEvent()
}

type LndChannelOpened struct {
	Active                bool
	RemotePubkey          string
	ChannelPoint          string
	ChanId                uint64
	Capacity              int64
	LocalBalance          int64
	RemoteBalance         int64
	TotalSatoshisSent     int64
	TotalSatoshisReceived int64
}

type LndChannelClosed struct {
	ChannelPoint      string
	ChanId            uint64
	ChainHash         string
	ClosingTxHash     string
	RemotePubkey      string
	Capacity          int64
	CloseHeight       uint32
	SettledBalance    int64
	TimeLockedBalance int64
	CloseType         string
	OpenInitiator     string
	CloseInitiator    string
}

// LndInvoiceDetails carries the fields shared by all LND invoice events.
// Preimage and Hash are the raw bytes from the wire.
type LndInvoiceDetails struct {
	Preimage       []byte
	Hash           []byte
	ValueMsat      int64
	Memo           string
	CreationDate   int64
	PaymentRequest string
}

type LndInvoiceCreated struct {
	LndInvoiceDetails
}

type LndInvoiceSettled struct {
	LndInvoiceDetails
	SettleDate  int64
	AmtPaidMsat int64
	SettleIndex uint64
}

type LndInvoiceCancelled struct {
	LndInvoiceDetails
}

type LndInvoiceAccepted struct {
	LndInvoiceDetails
	AmtPaidMsat int64
}

type ClnChannelOpened struct {
	PeerPubkey   string
	FundingMsat  uint64
	FundingTxid  string
	ChannelReady bool
}

func (LndChannelOpened) isRawEvent()    {}
func (LndChannelClosed) isRawEvent()    {}
func (LndInvoiceCreated) isRawEvent()   {}
func (LndInvoiceSettled) isRawEvent()   {}
func (LndInvoiceCancelled) isRawEvent() {}
func (LndInvoiceAccepted) isRawEvent()  {}
func (ClnChannelOpened) isRawEvent()    {}
