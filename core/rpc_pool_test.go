package core

import (
	"testing"
	"time"
)

func TestRPCPoolReusesClientPerEndpoint(t *testing.T) {
	p := NewRPCPool(time.Minute)
	defer p.Close()

	a := p.Client("https://icp0.io")
	b := p.Client("https://icp0.io")
	if a != b {
		t.Fatalf("expected the same client instance for the same endpoint")
	}

	c := p.Client("https://other.example")
	if c == a {
		t.Fatalf("expected distinct clients for distinct endpoints")
	}

	if p.Stats() != 2 {
		t.Fatalf("expected 2 pooled clients, got %d", p.Stats())
	}
}

func TestRPCPoolCloseDropsClients(t *testing.T) {
	p := NewRPCPool(time.Minute)
	p.Client("https://icp0.io")
	p.Close()
	if p.Stats() != 0 {
		t.Fatalf("expected no pooled clients after Close, got %d", p.Stats())
	}
}
