// Package wallet implements the wallet connection manager: the session
// store, the connection controller, the provider event bridge, and the
// Manager that composes them.
//
// Invariants:
// - IsConnecting and IsConnected are never both true in a snapshot.
// - Account is non-empty exactly when IsConnected is true.
// - Provider failures never escape an operation; they land in Session.Error.
package wallet

// Session is the UI-facing snapshot of the wallet connection.
type Session struct {
	Account      string `json:"account"`
	ChainID      string `json:"chainId"`
	IsConnected  bool   `json:"isConnected"`
	IsConnecting bool   `json:"isConnecting"`
	Error        string `json:"error"`
}

// Patch is a partial Session update. Nil fields keep the prior value.
type Patch struct {
	Account      *string
	ChainID      *string
	IsConnected  *bool
	IsConnecting *bool
	Error        *string
}

func str(s string) *string { return &s }

func boolean(b bool) *bool { return &b }

// DisconnectedPatch clears the session back to its disconnected shape.
func DisconnectedPatch() Patch {
	return Patch{
		Account:     str(""),
		ChainID:     str(""),
		IsConnected: boolean(false),
		Error:       str(""),
	}
}

// ErrorPatch sets only the error message.
func ErrorPatch(message string) Patch {
	return Patch{Error: str(message)}
}

func (p Patch) apply(s Session) Session {
	if p.Account != nil {
		s.Account = *p.Account
	}
	if p.ChainID != nil {
		s.ChainID = *p.ChainID
	}
	if p.IsConnected != nil {
		s.IsConnected = *p.IsConnected
	}
	if p.IsConnecting != nil {
		s.IsConnecting = *p.IsConnecting
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	if s.IsConnected {
		s.IsConnecting = false
	}
	return s
}
