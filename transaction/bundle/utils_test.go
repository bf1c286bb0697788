package bundle

import (
	"testing"

	"github.com/liteseed/gatewaycore/crypto"
	"github.com/liteseed/gatewaycore/signer"
	"github.com/liteseed/gatewaycore/transaction/data_item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongTo32ByteArrayRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 1115, 4096, 1 << 20} {
		encoded := longTo32ByteArray(n)
		assert.Len(t, encoded, 32)
		assert.Equal(t, n, byteArrayToLong(encoded))
	}
}

func TestGenerateAndDecodeBundleHeader(t *testing.T) {
	s, err := signer.New()
	require.NoError(t, err)

	item := data_item.New([]byte("payload for header test"), "", "", nil)
	require.NoError(t, item.Sign(s))

	headers, err := generateBundleHeader(&[]data_item.DataItem{*item})
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, item.ID, headers[0].ID)
	assert.Equal(t, len(item.Raw), headers[0].Size)

	// Build the on-wire header table bytes the same way bundle.New does,
	// then decode it back.
	idBytes, err := crypto.Base64URLDecode(headers[0].ID)
	require.NoError(t, err)

	raw := longTo32ByteArray(1)
	raw = append(raw, longTo32ByteArray(headers[0].Size)...)
	raw = append(raw, idBytes...)
	raw = append(raw, item.Raw...)

	decodedHeaders, n, err := decodeBundleHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, decodedHeaders, 1)
	assert.Equal(t, headers[0].ID, decodedHeaders[0].ID)
	assert.Equal(t, headers[0].Size, decodedHeaders[0].Size)
}

func TestGenerateBundleHeaderRejectsUnsignedItem(t *testing.T) {
	item := data_item.New([]byte("not signed"), "", "", nil)
	_, err := generateBundleHeader(&[]data_item.DataItem{*item})
	assert.Error(t, err)
}

func TestDecodeBundleHeaderRejectsShortBinary(t *testing.T) {
	_, _, err := decodeBundleHeader([]byte{1, 2, 3})
	assert.Error(t, err)
}
