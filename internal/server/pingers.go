package server

import (
	"context"
	"fmt"

	"github.com/calvia/persona/internal/rag"
)

// EmbedderPinger probes the embedding backend by embedding a single short
// string. It satisfies the Pinger interface and is used by GET /api/ready.
// The probe costs one tiny embedding request per readiness check, which is
// cheap compared to a chat completion.
type EmbedderPinger struct {
	// embedder is the embedding client to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses (e.g. "gemini").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder-" + p.name }

// Ping embeds a single token and verifies a non-empty vector comes back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// InboxPinger probes the inbox database with a lightweight query.
// It satisfies the Pinger interface and is used by GET /api/ready.
type InboxPinger struct {
	// ping is the store's health probe.
	ping func(ctx context.Context) error
}

// NewInboxPinger constructs an InboxPinger from the store's Ping method.
func NewInboxPinger(ping func(ctx context.Context) error) *InboxPinger {
	return &InboxPinger{ping: ping}
}

// Name returns the dependency label used in readiness responses.
func (p *InboxPinger) Name() string { return "inbox" }

// Ping delegates to the store's health probe.
func (p *InboxPinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("inbox check failed: %w", err)
	}
	return nil
}
