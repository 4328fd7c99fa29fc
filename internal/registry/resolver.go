package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MetaFetcher loads symbol and decimals for a token outside the registry.
type MetaFetcher func(ctx context.Context, addr common.Address) (Token, error)

// Resolver answers lookups from the registry first and falls back to
// on-chain metadata, caching every fetched entry.
type Resolver struct {
	reg   *Registry
	fetch MetaFetcher

	mu    sync.RWMutex
	cache map[common.Address]Token
}

func NewResolver(reg *Registry, fetch MetaFetcher) *Resolver {
	return &Resolver{reg: reg, fetch: fetch, cache: make(map[common.Address]Token)}
}

// Registry returns the static registry behind the resolver.
func (r *Resolver) Registry() *Registry {
	return r.reg
}

// Resolve returns the token entry for addr. Unregistered tokens take their
// on-chain symbol, or the placeholder when the token reports none.
func (r *Resolver) Resolve(ctx context.Context, addr common.Address) (Token, error) {
	if r.reg != nil {
		if token, err := r.reg.Token(addr); err == nil {
			return token, nil
		}
	}

	r.mu.RLock()
	token, ok := r.cache[addr]
	r.mu.RUnlock()
	if ok {
		return token, nil
	}

	if r.fetch == nil {
		return Token{}, ErrNotFound
	}
	token, err := r.fetch(ctx, addr)
	if err != nil {
		return Token{}, err
	}
	token.Address = addr
	token.Symbol = strings.TrimSpace(token.Symbol)
	if token.Symbol == "" {
		token.Symbol = Placeholder(addr)
	}

	r.mu.Lock()
	r.cache[addr] = token
	r.mu.Unlock()
	return token, nil
}
