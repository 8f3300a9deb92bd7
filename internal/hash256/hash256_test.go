package hash256

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	const s = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	h, err := Decode(s)
	require.NoError(t, err)
	require.Equal(t, s, h.Encode())
}

func TestDecodeRejectsBadLength(t *testing.T) {
	_, err := Decode("abcd")
	require.Error(t, err)
}

func TestDecodeRejectsNonHex(t *testing.T) {
	_, err := Decode("zz00000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
}

func TestMarshalUnmarshalJSON(t *testing.T) {
	const s = "4860eb18bf1b1620e37e9490fc8a427514416fd75159ab86688e9a8300723f80"
	h := MustDecode(s)
	b, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"`+s+`"`, string(b))

	var back Hash256
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, h, back)
}

func TestEqualAndCompareAreByteWise(t *testing.T) {
	a := MustDecode("000000000000000000000000000000000000000000000000000000000000000a")
	b := MustDecode("000000000000000000000000000000000000000000000000000000000000000b")
	require.True(t, a.Compare(b) < 0)
	require.True(t, b.Compare(a) > 0)
	require.False(t, a.Equal(b))
	require.True(t, a.Equal(a))
}

// chainhashRoundTrip documents that the display-hex contract bitcoind's
// JSON-RPC uses (e.g. getblockhash's return value) matches the byte order
// chainhash.Hash treats as canonical: decode(encode(x)) == x with no extra
// reversal needed on our end.
func TestChainhashRoundTripAgreesWithOurEncoding(t *testing.T) {
	const s = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	ours, err := Decode(s)
	require.NoError(t, err)

	ch, err := chainhash.NewHashFromStr(s)
	require.NoError(t, err)
	require.Equal(t, s, ch.String())
	require.Equal(t, s, ours.Encode())
}
