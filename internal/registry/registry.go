package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound is returned when a symbol or address is not registered.
// Callers render a placeholder instead of failing.
var ErrNotFound = errors.New("token not registered")

// Token is one registry entry.
type Token struct {
	Symbol   string         `json:"symbol" mapstructure:"symbol"`
	Address  common.Address `json:"address" mapstructure:"address"`
	Decimals uint8          `json:"decimals" mapstructure:"decimals"`
}

// Registry is an immutable symbol <-> address mapping.
type Registry struct {
	bySymbol  map[string]Token
	byAddress map[common.Address]Token
}

// New builds a registry. Every address must map to exactly one symbol.
func New(tokens []Token) (*Registry, error) {
	r := &Registry{
		bySymbol:  make(map[string]Token, len(tokens)),
		byAddress: make(map[common.Address]Token, len(tokens)),
	}
	for _, token := range tokens {
		symbol := strings.TrimSpace(token.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("empty symbol for %s", token.Address.Hex())
		}
		token.Symbol = symbol
		if _, ok := r.bySymbol[symbol]; ok {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		if prev, ok := r.byAddress[token.Address]; ok {
			return nil, fmt.Errorf("address %s registered as %s and %s", token.Address.Hex(), prev.Symbol, symbol)
		}
		r.bySymbol[symbol] = token
		r.byAddress[token.Address] = token
	}
	return r, nil
}

// Symbol resolves an address to its symbol.
func (r *Registry) Symbol(addr common.Address) (string, error) {
	token, err := r.Token(addr)
	if err != nil {
		return "", err
	}
	return token.Symbol, nil
}

// Address resolves a symbol to its address.
func (r *Registry) Address(symbol string) (common.Address, error) {
	token, ok := r.bySymbol[strings.TrimSpace(symbol)]
	if !ok {
		return common.Address{}, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return token.Address, nil
}

// Decimals returns the decimal precision registered for symbol.
func (r *Registry) Decimals(symbol string) (uint8, error) {
	token, ok := r.bySymbol[strings.TrimSpace(symbol)]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return token.Decimals, nil
}

// Token returns the full entry for addr.
func (r *Registry) Token(addr common.Address) (Token, error) {
	token, ok := r.byAddress[addr]
	if !ok {
		return Token{}, fmt.Errorf("%s: %w", addr.Hex(), ErrNotFound)
	}
	return token, nil
}

// SymbolOrPlaceholder never fails; unknown addresses render as Placeholder.
func (r *Registry) SymbolOrPlaceholder(addr common.Address) string {
	if symbol, err := r.Symbol(addr); err == nil {
		return symbol
	}
	return Placeholder(addr)
}

// Tokens returns all entries ordered by symbol.
func (r *Registry) Tokens() []Token {
	out := make([]Token, 0, len(r.bySymbol))
	for _, token := range r.bySymbol {
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Placeholder is the display name for an unregistered address.
func Placeholder(addr common.Address) string {
	return strings.ToLower(addr.Hex())[:8]
}
