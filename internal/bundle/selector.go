package bundle

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// Selector picks the tip account for one bundle from an explicit snapshot.
type Selector interface {
	Select(pool domain.TipPool) (solana.PublicKey, error)
}

// RandomSelector picks uniformly at random.
type RandomSelector struct {
	intN func(n int) int
}

// NewRandomSelector returns a RandomSelector using the global generator.
func NewRandomSelector() *RandomSelector {
	return &RandomSelector{intN: rand.IntN}
}

func (s *RandomSelector) Select(pool domain.TipPool) (solana.PublicKey, error) {
	if pool.Len() == 0 {
		return solana.PublicKey{}, ErrEmptyPool
	}
	return pool.Accounts[s.intN(pool.Len())], nil
}

// RoundRobinSelector cycles through the pool in order.
type RoundRobinSelector struct {
	next atomic.Uint64
}

func (s *RoundRobinSelector) Select(pool domain.TipPool) (solana.PublicKey, error) {
	if pool.Len() == 0 {
		return solana.PublicKey{}, ErrEmptyPool
	}
	i := (s.next.Add(1) - 1) % uint64(pool.Len())
	return pool.Accounts[i], nil
}

// FixedSelector always picks the account at Index, modulo the pool size.
type FixedSelector struct {
	Index int
}

func (s FixedSelector) Select(pool domain.TipPool) (solana.PublicKey, error) {
	if pool.Len() == 0 {
		return solana.PublicKey{}, ErrEmptyPool
	}
	i := s.Index % pool.Len()
	if i < 0 {
		i += pool.Len()
	}
	return pool.Accounts[i], nil
}

// SelectorRegistry holds named selectors for selection by config.
type SelectorRegistry struct {
	selectors map[string]Selector
	mu        sync.RWMutex
}

// NewSelectorRegistry returns a registry with "random" and "round_robin".
func NewSelectorRegistry() *SelectorRegistry {
	r := &SelectorRegistry{selectors: make(map[string]Selector)}
	r.Register("random", NewRandomSelector())
	r.Register("round_robin", &RoundRobinSelector{})
	return r
}

// Register adds a selector under the given name.
func (r *SelectorRegistry) Register(name string, s Selector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectors[name] = s
}

// Get returns the selector by name, or an error if not found.
func (r *SelectorRegistry) Get(name string) (Selector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.selectors[name]
	if !ok {
		return nil, fmt.Errorf("tip selector %q not found", name)
	}
	return s, nil
}

// List returns all registered selector names, sorted.
func (r *SelectorRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.selectors))
	for n := range r.selectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
