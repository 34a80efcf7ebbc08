// Package httpclient hands out pooled HTTP clients, one per outbound provider.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	DialTimeout         time.Duration
	RequestTimeout      time.Duration
	IdleTimeout         time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

func DefaultConfig() Config {
	return Config{
		DialTimeout:         5 * time.Second,
		RequestTimeout:      15 * time.Second,
		IdleTimeout:         90 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
	}
}

// Pool caches one client per provider so each keeps its own keep-alive connections.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*http.Client
	config  Config
	logger  *zap.Logger
}

func NewPool(config Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		clients: make(map[string]*http.Client),
		config:  config,
		logger:  logger,
	}
}

func (p *Pool) Client(provider string) *http.Client {
	p.mu.RLock()
	client, ok := p.clients[provider]
	p.mu.RUnlock()
	if ok {
		return client
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok = p.clients[provider]; ok {
		return client
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   p.config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          p.config.MaxIdleConns,
		MaxIdleConnsPerHost:   p.config.MaxIdleConnsPerHost,
		IdleConnTimeout:       p.config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	client = &http.Client{
		Transport: transport,
		Timeout:   p.config.RequestTimeout,
	}
	p.clients[provider] = client

	p.logger.Debug("Created provider HTTP client",
		zap.String("provider", provider),
	)
	return client
}

// Close drops idle connections of every client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, client := range p.clients {
		client.CloseIdleConnections()
		delete(p.clients, name)
	}
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
