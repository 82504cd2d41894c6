package webrtcpeer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validOffer = "v=0\r\n" +
	"o=- 0 0 IN IP4 0.0.0.0\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=ice-ufrag:remoteUfrag\r\n" +
	"a=ice-pwd:remotePwd0123456789\r\n" +
	"a=setup:actpass\r\n" +
	"a=mid:0\r\n"

func TestParseOfferExtractsCredentials(t *testing.T) {
	info, err := ParseOffer(validOffer)
	require.NoError(t, err)
	require.Equal(t, "remoteUfrag", info.UFrag)
	require.Equal(t, "remotePwd0123456789", info.Pwd)
}

func TestParseOfferRejectsMissingUfrag(t *testing.T) {
	sdp := strings.Replace(validOffer, "a=ice-ufrag:remoteUfrag\r\n", "", 1)
	_, err := ParseOffer(sdp)
	require.Error(t, err)
}

func TestParseOfferRejectsMissingPwd(t *testing.T) {
	sdp := strings.Replace(validOffer, "a=ice-pwd:remotePwd0123456789\r\n", "", 1)
	_, err := ParseOffer(sdp)
	require.Error(t, err)
}

func TestParseOfferRejectsMultipleApplicationSections(t *testing.T) {
	sdp := validOffer + "m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n"
	_, err := ParseOffer(sdp)
	require.Error(t, err)
}

func TestParseOfferRejectsZeroApplicationSections(t *testing.T) {
	sdp := strings.Replace(validOffer, "m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n", "", 1)
	_, err := ParseOffer(sdp)
	require.Error(t, err)
}

func TestParseRemoteCandidateParsesFields(t *testing.T) {
	c, err := ParseRemoteCandidate("candidate:1 1 udp 2130706431 10.0.0.5 54400 typ host")
	require.NoError(t, err)
	require.Equal(t, "1", c.Foundation)
	require.Equal(t, 1, c.Component)
	require.Equal(t, "udp", c.Protocol)
	require.Equal(t, uint32(2130706431), c.Priority)
	require.Equal(t, "10.0.0.5", c.Address)
	require.Equal(t, 54400, c.Port)
}

func TestParseRemoteCandidateRejectsTooFewFields(t *testing.T) {
	_, err := ParseRemoteCandidate("candidate:1 1 udp")
	require.Error(t, err)
}

func TestBuildAnswerContainsCredentialsAndFingerprint(t *testing.T) {
	sdp := BuildAnswer("localUfrag", "localPwd", "AA:BB:CC")
	require.Contains(t, sdp, "a=ice-ufrag:localUfrag\r\n")
	require.Contains(t, sdp, "a=ice-pwd:localPwd\r\n")
	require.Contains(t, sdp, "a=fingerprint:sha-256 AA:BB:CC\r\n")
	require.Contains(t, sdp, "m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n")
	require.Contains(t, sdp, "a=setup:passive\r\n")
}
