package cloud

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSDPRoundTrip(t *testing.T) {
	sdp := SDP{Type: SDPTypeOffer, SDP: "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"}
	encoded, err := EncodeSDP(sdp)
	require.NoError(t, err)

	decoded, err := DecodeSDP(encoded)
	require.NoError(t, err)
	require.Equal(t, sdp, decoded)
}

func TestDecodeSDPRejectsInvalidBase64(t *testing.T) {
	_, err := DecodeSDP("not-valid-base64!!!")
	require.Error(t, err)
}

func TestDecodeSDPRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeSDP("bm90IGpzb24=") // "not json"
	require.Error(t, err)
}

func TestValidateOfferRejectsNonOffer(t *testing.T) {
	err := ValidateOffer(SDP{Type: SDPTypeAnswer, SDP: "x"})
	require.Error(t, err)

	require.NoError(t, ValidateOffer(SDP{Type: SDPTypeOffer, SDP: "x"}))
}

func TestExpiresWithinOnMalformedTokenDefaultsTrue(t *testing.T) {
	require.True(t, ExpiresWithin("not-a-jwt", 0))
}
