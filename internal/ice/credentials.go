package ice

import (
	"crypto/rand"
	"encoding/base64"
)

// Credentials is the (u-frag, pwd) pair described in §3. Local credentials
// are generated per offer; remote credentials are extracted from the SDP
// offer's media-level attributes.
type Credentials struct {
	UFrag string
	Pwd   string
}

// GenerateCredentials produces a fresh local ICE ufrag/pwd pair, sized the
// way pion/ice generates its own (4 bytes of ufrag entropy, 18 of pwd,
// base64-encoded).
func GenerateCredentials() (Credentials, error) {
	ufrag, err := randomBase64(4)
	if err != nil {
		return Credentials{}, err
	}
	pwd, err := randomBase64(18)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{UFrag: ufrag, Pwd: pwd}, nil
}

func randomBase64(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
