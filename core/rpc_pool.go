package core

// rpc_pool.go pools outbound HTTP clients to ledger RPC endpoints, adapted
// from connection_pool.go's ConnPool/Dialer/reaper trio: the same
// acquire/release/idle-reaper shape, specialised from raw net.Conn pooling
// to per-endpoint *http.Client reuse (each ledger boundary-node endpoint
// gets its own keep-alive-enabled client rather than a fresh TLS handshake
// per call).

import (
	"net/http"
	"sync"
	"time"
)

// RPCPool hands out a shared *http.Client per ledger endpoint and closes
// idle transports after a TTL, the way ConnPool retires idle net.Conns.
type RPCPool struct {
	mu        sync.Mutex
	clients   map[string]*pooledClient
	idleTTL   time.Duration
	closing   chan struct{}
	closeOnce sync.Once
}

type pooledClient struct {
	client   *http.Client
	lastUsed time.Time
}

// NewRPCPool constructs a pool that retires endpoint clients idle for
// longer than idleTTL.
func NewRPCPool(idleTTL time.Duration) *RPCPool {
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	p := &RPCPool{
		clients: make(map[string]*pooledClient),
		idleTTL: idleTTL,
		closing: make(chan struct{}),
	}
	go p.reaper()
	return p
}

// Client returns the shared *http.Client for endpoint, creating one on
// first use.
func (p *RPCPool) Client(endpoint string) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	pc, ok := p.clients[endpoint]
	if !ok {
		pc = &pooledClient{client: &http.Client{Timeout: 30 * time.Second}}
		p.clients[endpoint] = pc
	}
	pc.lastUsed = time.Now()
	return pc.client
}

// Stats returns the number of endpoint clients currently pooled.
func (p *RPCPool) Stats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Close stops the reaper and drops all pooled clients, closing their idle
// connections.
func (p *RPCPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, pc := range p.clients {
			pc.client.CloseIdleConnections()
		}
		p.clients = make(map[string]*pooledClient)
	})
}

func (p *RPCPool) reaper() {
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-p.idleTTL)
			p.mu.Lock()
			for endpoint, pc := range p.clients {
				if pc.lastUsed.Before(cutoff) {
					pc.client.CloseIdleConnections()
					delete(p.clients, endpoint)
				}
			}
			p.mu.Unlock()
		case <-p.closing:
			return
		}
	}
}
