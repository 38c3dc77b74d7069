package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/harun/walletlink/internal/observability"
)

// ClientRegistry tracks connected websocket clients and keeps the
// connected-clients gauge current.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

// Add registers a client
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	n := len(r.clients)
	r.mu.Unlock()

	observability.SetGatewayClients(n)
}

// Remove forgets a client and reports whether it was registered
func (r *ClientRegistry) Remove(clientID string) bool {
	r.mu.Lock()
	_, ok := r.clients[clientID]
	delete(r.clients, clientID)
	n := len(r.clients)
	r.mu.Unlock()

	if ok {
		observability.SetGatewayClients(n)
	}
	return ok
}

// Touch records activity from a client
func (r *ClientRegistry) Touch(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = time.Now()
	}
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// All returns every client in connection order
func (r *ClientRegistry) All() []*Client {
	return r.sorted(func(*Client) bool { return true })
}

// Recipients returns the authenticated clients in connection order
func (r *ClientRegistry) Recipients() []*Client {
	return r.sorted(func(c *Client) bool { return c.Authenticated })
}

// Infos describes every client. Clients quiet for longer than idleAfter are
// marked idle.
func (r *ClientRegistry) Infos(idleAfter time.Duration) []ClientInfo {
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		infos = append(infos, ClientInfo{
			ID:            c.ID,
			Authenticated: c.Authenticated,
			ConnectedAt:   c.ConnectedAt,
			LastActivity:  c.LastActivity,
			IPAddress:     c.IPAddress,
			Idle:          now.Sub(c.LastActivity) > idleAfter,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConnectedAt.Before(infos[j].ConnectedAt) })
	return infos
}

func (r *ClientRegistry) sorted(keep func(*Client) bool) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}
