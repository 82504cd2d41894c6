package ice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viamrobotics/micro-rdk-go/internal/udpmux"
)

func TestGatherHostCandidatesAlwaysReturnsAtLeastOne(t *testing.T) {
	candidates, err := GatherHostCandidates(5000)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		require.Equal(t, 1, c.Component)
		require.Equal(t, CandidateTypeHost, c.Type)
		require.Equal(t, 5000, c.Port)
	}
}

func TestGenerateCredentialsAreNonEmptyAndDistinct(t *testing.T) {
	a, err := GenerateCredentials()
	require.NoError(t, err)
	b, err := GenerateCredentials()
	require.NoError(t, err)

	require.NotEmpty(t, a.UFrag)
	require.NotEmpty(t, a.Pwd)
	require.NotEqual(t, a.UFrag, b.UFrag)
}

func TestBindingRequestResponseRoundTrip(t *testing.T) {
	req, err := buildBindingRequest("localUfrag", "remoteUfrag", "localPwd", 12345, 99)
	require.NoError(t, err)
	require.True(t, isBindingRequest(req))
	require.False(t, hasUseCandidate(req))

	resp, err := buildBindingResponse(req, "127.0.0.1", 9000, "localPwd")
	require.NoError(t, err)
	require.False(t, isBindingRequest(resp))
	require.Equal(t, req.TransactionID, resp.TransactionID)
}

func TestAgentCloseIsIdempotentAndUnblocksConnect(t *testing.T) {
	mux, err := udpmux.New(":0")
	require.NoError(t, err)
	defer mux.Close()

	remote, err := GenerateCredentials()
	require.NoError(t, err)
	a, err := NewAgent(mux, 5001, remote)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "Close must be safe to call more than once")

	err = a.Connect(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
