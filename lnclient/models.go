package lnclient

import (
	"context"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// LNClient is the uniform surface over heterogeneous lightning backends.
// Implementations translate their native wire models into the normalized
// types below so that callers never branch on the backend in use.
type LNClient interface {
	// GetInfo returns the identity captured when the connection was
	// established. It never touches the backend and never fails.
	GetInfo() *NodeInfo
	GetNetwork(ctx context.Context) (Network, error)
	GetNodeInfo(ctx context.Context, pubkey string) (*NodeInfo, error)
	ListChannels(ctx context.Context) ([]ChannelSummary, error)
	GetChannelInfo(ctx context.Context, chanId ShortChannelID) (*ChannelDetails, error)
	ListPayments(ctx context.Context) ([]PaymentSummary, error)
	GetPaymentDetails(ctx context.Context, paymentHash string) (*PaymentDetails, error)
	ListInvoices(ctx context.Context) ([]CustomInvoice, error)
	GetInvoiceDetails(ctx context.Context, paymentHash string) (*CustomInvoice, error)
	// StreamEvents starts the backend's event subscriptions and returns a
	// channel of raw backend events. The channel is closed when the stream
	// ends or ctx is cancelled.
	StreamEvents(ctx context.Context) (<-chan RawEvent, error)
	Shutdown() error
}

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkSignet  Network = "signet"
	NetworkRegtest Network = "regtest"
)

// ParseNetwork normalizes the chain names the backends report. LND says
// "mainnet"/"testnet", CLN says "bitcoin"/"testnet"/"signet"/"regtest".
func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(name) {
	case "mainnet", "bitcoin":
		return NetworkMainnet, nil
	case "testnet", "testnet3", "testnet4":
		return NetworkTestnet, nil
	case "signet":
		return NetworkSignet, nil
	case "regtest":
		return NetworkRegtest, nil
	}
	return "", ParseError(nil, "unknown network %q", name)
}

// ValidatePubkey checks that a string is a valid compressed secp256k1
// public key in hex.
func ValidatePubkey(pubkey string) error {
	raw, err := hex.DecodeString(pubkey)
	if err != nil {
		return ValidationError("pubkey %q is not valid hex", pubkey)
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return ValidationError("pubkey %q is not a valid secp256k1 point", pubkey)
	}
	return nil
}

// NodeId is the identity the operator claims for a node connection, either
// a hex pubkey or an alias. It is checked against what the backend reports.
type NodeId struct {
	Pubkey string
	Alias  string
}

func NewNodeIdFromPubkey(pubkey string) NodeId {
	return NodeId{Pubkey: pubkey}
}

func NewNodeIdFromAlias(alias string) NodeId {
	return NodeId{Alias: alias}
}

// Validate checks the backend-reported identity against the expected one.
func (n NodeId) Validate(pubkey, alias string) error {
	if n.Pubkey != "" {
		if !strings.EqualFold(n.Pubkey, pubkey) {
			return ValidationError("node pubkey mismatch: expected %s, node reports %s", n.Pubkey, pubkey)
		}
		return nil
	}
	if n.Alias != "" {
		if n.Alias != alias {
			return ValidationError("node alias mismatch: expected %q, node reports %q", n.Alias, alias)
		}
		return nil
	}
	return ValidationError("node id has neither pubkey nor alias")
}

func (n NodeId) String() string {
	if n.Pubkey != "" {
		return n.Pubkey
	}
	return n.Alias
}

// LndConnection carries everything needed to dial an LND node. Cert and
// macaroon are hex-encoded so they can travel through env vars and the DB.
type LndConnection struct {
	Id          NodeId
	Address     string
	CertHex     string
	MacaroonHex string
}

// ClnConnection carries the mutual-TLS material for a CLN node, PEM-encoded.
type ClnConnection struct {
	Id            NodeId
	Address       string
	CaCertPem     string
	ClientCertPem string
	ClientKeyPem  string
}

// NodeInfo is the normalized identity of a lightning node. Features holds
// the set feature bits in ascending order.
type NodeInfo struct {
	Pubkey   string   `json:"pubkey"`
	Alias    string   `json:"alias"`
	Features []uint32 `json:"features"`
}

// FeaturesFromBits collects the keys of an LND feature map into a sorted
// bit list.
func FeaturesFromBits(bits map[uint32]bool) []uint32 {
	features := make([]uint32, 0, len(bits))
	for bit, set := range bits {
		if set {
			features = append(features, bit)
		}
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features
}

// FeaturesFromHex decodes a CLN feature bitfield (big-endian hex, bit 0 in
// the last byte) into a sorted bit list. Undecodable input yields nil.
func FeaturesFromHex(featureHex string) []uint32 {
	raw, err := hex.DecodeString(featureHex)
	if err != nil {
		return nil
	}
	var features []uint32
	for i := len(raw) - 1; i >= 0; i-- {
		b := raw[i]
		base := uint32(len(raw)-1-i) * 8
		for bit := uint32(0); bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				features = append(features, base+bit)
			}
		}
	}
	return features
}

// ShortChannelID is the compact channel id: block height, transaction index
// and output index packed into a uint64.
type ShortChannelID uint64

func NewShortChannelID(block uint32, txIndex uint32, outputIndex uint16) ShortChannelID {
	return ShortChannelID(uint64(block)<<40 | uint64(txIndex)<<16 | uint64(outputIndex))
}

func (s ShortChannelID) Block() uint32       { return uint32(uint64(s) >> 40) }
func (s ShortChannelID) TxIndex() uint32     { return uint32(uint64(s) >> 16 & 0xFFFFFF) }
func (s ShortChannelID) OutputIndex() uint16 { return uint16(uint64(s) & 0xFFFF) }

func (s ShortChannelID) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// ParseShortChannelID parses the decimal representation used by LND and by
// our own API surface.
func ParseShortChannelID(s string) (ShortChannelID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ParseError(err, "invalid short channel id %q", s)
	}
	return ShortChannelID(id), nil
}

type ChannelState string

const (
	ChannelStateOpening  ChannelState = "Opening"
	ChannelStateActive   ChannelState = "Active"
	ChannelStateClosing  ChannelState = "Closing"
	ChannelStateClosed   ChannelState = "Closed"
	ChannelStateDisabled ChannelState = "Disabled"
)

type PaymentState string

const (
	PaymentStateInflight PaymentState = "Inflight"
	PaymentStateSettled  PaymentState = "Settled"
	PaymentStateFailed   PaymentState = "Failed"
)

type InvoiceState string

const (
	InvoiceStateOpen      InvoiceState = "Open"
	InvoiceStateSettled   InvoiceState = "Settled"
	InvoiceStateCancelled InvoiceState = "Cancelled"
	InvoiceStateExpired   InvoiceState = "Expired"
	InvoiceStateAccepted  InvoiceState = "Accepted"
)

// NodePolicy is one side's routing policy on a channel.
type NodePolicy struct {
	Pubkey        string `json:"pubkey"`
	FeeBaseMsat   uint64 `json:"fee_base_msat"`
	FeeRateMsat   uint64 `json:"fee_rate_msat"`
	MinHtlcMsat   uint64 `json:"min_htlc_msat"`
	MaxHtlcMsat   uint64 `json:"max_htlc_msat"`
	TimeLockDelta uint32 `json:"time_lock_delta"`
	Disabled      bool   `json:"disabled"`
	LastUpdate    uint64 `json:"last_update"`
}

type ChannelSummary struct {
	ChanId           ShortChannelID `json:"chan_id"`
	State            ChannelState   `json:"state"`
	Private          bool           `json:"private"`
	RemotePubkey     string         `json:"remote_pubkey"`
	CapacitySat      uint64         `json:"capacity_sat"`
	LocalBalanceSat  uint64         `json:"local_balance_sat"`
	RemoteBalanceSat uint64         `json:"remote_balance_sat"`
}

// ChannelDetails is the graph view of a channel: both endpoints' policies,
// with Node1Policy always belonging to the lexicographically smaller pubkey.
type ChannelDetails struct {
	ChanId      ShortChannelID `json:"chan_id"`
	CapacitySat uint64         `json:"capacity_sat"`
	Node1Policy *NodePolicy    `json:"node1_policy"`
	Node2Policy *NodePolicy    `json:"node2_policy"`
}

type PaymentSummary struct {
	PaymentHash   string       `json:"payment_hash"`
	State         PaymentState `json:"state"`
	AmountSat     uint64       `json:"amount_sat"`
	AmountUsd     float64      `json:"amount_usd"`
	RoutingFeeSat uint64       `json:"routing_fee_sat"`
	Invoice       string       `json:"invoice"`
	CreatedAt     int64        `json:"created_at"`
	ResolvedAt    int64        `json:"resolved_at"`
}

type Hop struct {
	Pubkey       string         `json:"pubkey"`
	ChanId       ShortChannelID `json:"chan_id"`
	AmountFwdSat uint64         `json:"amount_fwd_sat"`
	FeeSat       uint64         `json:"fee_sat"`
	Expiry       uint32         `json:"expiry"`
}

type Route struct {
	TotalTimeLock uint32 `json:"total_time_lock"`
	TotalFeesSat  uint64 `json:"total_fees_sat"`
	TotalAmtSat   uint64 `json:"total_amt_sat"`
	Hops          []Hop  `json:"hops"`
}

// PaymentHtlc is one HTLC attempt of a payment with the route it took.
type PaymentHtlc struct {
	AttemptId   uint64 `json:"attempt_id"`
	Route       Route  `json:"route"`
	AttemptTime int64  `json:"attempt_time"`
	ResolveTime int64  `json:"resolve_time"`
	Failure     string `json:"failure,omitempty"`
}

type PaymentDetails struct {
	PaymentSummary
	DestinationPubkey string        `json:"destination_pubkey"`
	Description       string        `json:"description"`
	Htlcs             []PaymentHtlc `json:"htlcs"`
}

type InvoiceHtlc struct {
	ChanId       ShortChannelID `json:"chan_id"`
	HtlcIndex    uint64         `json:"htlc_index"`
	AmountMsat   uint64         `json:"amount_msat"`
	AcceptTime   int64          `json:"accept_time"`
	ResolveTime  int64          `json:"resolve_time"`
	ExpiryHeight int32          `json:"expiry_height"`
}

type CustomInvoice struct {
	Memo           string        `json:"memo"`
	PaymentHash    string        `json:"payment_hash"`
	Preimage       string        `json:"preimage,omitempty"`
	ValueSat       uint64        `json:"value_sat"`
	ValueMsat      uint64        `json:"value_msat"`
	State          InvoiceState  `json:"state"`
	CreationDate   int64         `json:"creation_date"`
	SettleDate     int64         `json:"settle_date"`
	ExpirySeconds  int64         `json:"expiry_seconds"`
	PaymentRequest string        `json:"payment_request"`
	Htlcs          []InvoiceHtlc `json:"htlcs"`
	Features       []uint32      `json:"features"`
}

// MsatToSat converts millisatoshis to whole satoshis, truncating the
// sub-satoshi remainder and clamping negative inputs to zero.
func MsatToSat(msat int64) uint64 {
	if msat < 0 {
		return 0
	}
	return uint64(msat) / 1000
}

// SatOrZero clamps a backend-reported satoshi amount to the unsigned domain.
func SatOrZero(sat int64) uint64 {
	if sat < 0 {
		return 0
	}
	return uint64(sat)
}
