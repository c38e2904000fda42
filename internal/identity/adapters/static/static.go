// Package static is an in-process name service backed by fixed records, used
// for development and tests.
package static

import (
	"context"
	"strings"
	"sync"

	"unikyc/internal/identity/models"
	id "unikyc/pkg/domain"
)

type NameService struct {
	mu      sync.RWMutex
	forward map[string]id.Address
	reverse map[id.Address][]string
}

// New builds a name service from label → address records. Every forward
// record also registers the matching reverse record.
func New(records map[string]string) (*NameService, error) {
	ns := &NameService{
		forward: make(map[string]id.Address),
		reverse: make(map[id.Address][]string),
	}
	for label, address := range records {
		if err := ns.Register(label, address); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

// Register adds a forward record and its reverse record.
func (n *NameService) Register(label, address string) error {
	normalized, err := models.NormalizeLabel(label)
	if err != nil {
		return err
	}
	addr, err := id.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forward[normalized] = addr
	n.reverse[addr] = append(n.reverse[addr], normalized)
	return nil
}

// AddReverse adds a reverse-only record, as a registry would when an address
// claims a name it does not own.
func (n *NameService) AddReverse(address id.Address, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reverse[address] = append(n.reverse[address], name)
}

func (n *NameService) ResolveForward(_ context.Context, label string) (id.Address, bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	addr, ok := n.forward[label]
	return addr, ok, nil
}

func (n *NameService) ResolveBackward(_ context.Context, addr id.Address) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := n.reverse[addr]
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}
