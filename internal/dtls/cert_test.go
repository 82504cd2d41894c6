package dtls

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCertificateAndFingerprint(t *testing.T) {
	cert, err := GenerateSelfSignedCertificate()
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	ctx, err := NewContext(cert)
	require.NoError(t, err)
	require.NotEmpty(t, ctx.Fingerprint)

	// The <hex> part of "sha-256 <hex>" (§6): 32 colon-separated hex octets.
	parts := strings.Split(ctx.Fingerprint, ":")
	require.Len(t, parts, 32)
	for _, p := range parts {
		require.Len(t, p, 2)
	}
}
