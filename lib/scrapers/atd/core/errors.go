package core

import "fmt"

// The taxonomy is closed on purpose: every failure a caller can see from
// this package is one of these, so the CLI can attach remediation text
// without string matching.
var (
	// the sign-in page had no authenticity token in either an input
	// field or a meta tag
	ErrAuthParse = fmt.Errorf("could not find an authenticity token on the sign-in page, the portal layout may have changed")

	// the portal refused the credential POST
	ErrAuthCredentials = fmt.Errorf("the portal rejected the login, check the credentials in your preferences")

	// the oauth handshake did not produce the redirect shape we expect
	ErrAuthProtocol = fmt.Errorf("the authorization redirect did not carry a code, the login protocol may have changed")

	ErrSessionMissing = fmt.Errorf("no session is stored, run `atd login` first")
	ErrSessionExpired = fmt.Errorf("the stored session has expired, run `atd login` or store credentials to enable automatic relogin")

	// the one permitted re-login-and-retry cycle also came back
	// unauthenticated
	ErrReauthFailed = fmt.Errorf("re-authentication failed, the portal keeps rejecting the session even after a fresh login")
)
