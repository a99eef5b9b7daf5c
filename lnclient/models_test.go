package lnclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsatToSat(t *testing.T) {
	assert.Equal(t, uint64(1), MsatToSat(1999))
	assert.Equal(t, uint64(2), MsatToSat(2000))
	assert.Equal(t, uint64(0), MsatToSat(999))
	assert.Equal(t, uint64(0), MsatToSat(-5000))
}

func TestShortChannelIDRoundTrip(t *testing.T) {
	id := NewShortChannelID(840000, 1234, 1)
	assert.Equal(t, uint32(840000), id.Block())
	assert.Equal(t, uint32(1234), id.TxIndex())
	assert.Equal(t, uint16(1), id.OutputIndex())

	parsed, err := ParseShortChannelID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseShortChannelID("not-a-number")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindParse))
}

func TestParseNetwork(t *testing.T) {
	for name, want := range map[string]Network{
		"mainnet": NetworkMainnet,
		"bitcoin": NetworkMainnet,
		"testnet": NetworkTestnet,
		"signet":  NetworkSignet,
		"regtest": NetworkRegtest,
	} {
		got, err := ParseNetwork(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseNetwork("litecoin")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindParse))
}

func TestNodeIdValidate(t *testing.T) {
	pubkey := "03aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

	byPubkey := NewNodeIdFromPubkey(pubkey)
	assert.NoError(t, byPubkey.Validate(pubkey, "carol"))
	// hex case must not matter
	assert.NoError(t, byPubkey.Validate("03AABBCCDDEEFF00112233445566778899AABBCCDDEEFF00112233445566778899", "carol"))

	err := byPubkey.Validate("02"+pubkey[2:], "carol")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindValidation))

	byAlias := NewNodeIdFromAlias("carol")
	assert.NoError(t, byAlias.Validate(pubkey, "carol"))
	err = byAlias.Validate(pubkey, "mallory")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindValidation))
}

func TestFeaturesFromHex(t *testing.T) {
	// 0x0802 sets bits 1 and 11
	assert.Equal(t, []uint32{1, 11}, FeaturesFromHex("0802"))
	assert.Nil(t, FeaturesFromHex("zz"))
}
