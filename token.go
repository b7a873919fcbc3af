package realtime

// TokenProvider supplies the bearer token embedded in hub connection URLs.
// A single provider instance is shared by every hub so refreshes are not duplicated.
type TokenProvider interface {
	// Token returns the current session token.  Fails with AuthError when no
	// token is available.
	Token() (string, error)

	// Refresh obtains a fresh token, invalidating the previous one.  Called by
	// a HubConnection after the gateway rejects a handshake with 401.
	Refresh() (string, error)
}

// StaticTokenProvider wraps a fixed token string.  Refresh returns the same
// token, so expiry handling is up to the caller.  Mostly useful for tests and
// short-lived scripts.
type StaticTokenProvider string

// Token implement TokenProvider
func (s StaticTokenProvider) Token() (string, error) {
	if s == "" {
		return "", AuthError("no token configured")
	}
	return string(s), nil
}

// Refresh implement TokenProvider
func (s StaticTokenProvider) Refresh() (string, error) {
	return s.Token()
}
