package common

import "bytes"

// Admission tokens assert the identity of a calling service on gated
// cross-service writes. They are capability markers compared by the callee,
// not cryptographic credentials.
var (
	// TokenGovernance identifies the governance service, the only caller
	// permitted to rewrite consensus metadata or move settlement funds.
	TokenGovernance = []byte("governance")
)

// TokenMatches reports whether the presented admission token equals the
// expected constant. Nil or empty presented tokens never match.
func TokenMatches(presented, expected []byte) bool {
	if len(presented) == 0 {
		return false
	}
	return bytes.Equal(presented, expected)
}
