package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// maxAuthAttempts failed answers close the connection
const maxAuthAttempts = 3

// Authenticator guards the gateway with a shared secret. Websocket clients
// prove it by signing a random challenge; HTTP callers present it in
// SecretHeader.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator. An empty secret disables auth.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// SignChallenge returns the answer a client sends for challenge:
// hex(HMAC-SHA256(secret, challenge)).
func SignChallenge(secret, challenge string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

// NewChallenge returns 32 random bytes as hex
func (a *Authenticator) NewChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Verify checks a signed challenge in constant time
func (a *Authenticator) Verify(challenge, signature string) bool {
	expected := SignChallenge(string(a.secret), challenge)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// CheckSecret compares a presented secret in constant time
func (a *Authenticator) CheckSecret(secret string) bool {
	return subtle.ConstantTimeCompare(a.secret, []byte(secret)) == 1
}

// Respond handles a client's answer to its challenge and updates the
// client's auth state.
func (a *Authenticator) Respond(client *Client, signature string) AuthResult {
	if client.Challenge == "" {
		return AuthResult{Event: "auth.failure", Message: "No challenge found"}
	}

	if !a.Verify(client.Challenge, signature) {
		client.AuthAttempts++
		if client.AuthAttempts >= maxAuthAttempts {
			return AuthResult{Event: "auth.failure", Message: "Too many failed attempts"}
		}
		return AuthResult{Event: "auth.failure", Message: "Invalid signature"}
	}

	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""

	return AuthResult{Event: "auth.success", Success: true}
}
