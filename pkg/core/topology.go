package core

import (
	"net"
	"regexp"
)

// Container naming rules: lowercase alphanumerics, dash, underscore.
var nodeNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,63}$`)

// Topology is the ordered collection of nodes making up one test network.
// Uniqueness of names and addresses is enforced at add time, not boot time.
type Topology struct {
	nodes     []*NodeDescriptor
	allocator PortAllocator
	names     map[string]struct{}
	addrs     map[string]struct{}
}

// NewTopology creates an empty topology using the default port allocator.
func NewTopology() *Topology {
	return NewTopologyWithAllocator(DefaultPortAllocator())
}

// NewTopologyWithAllocator creates an empty topology with custom port bases.
func NewTopologyWithAllocator(alloc PortAllocator) *Topology {
	return &Topology{
		allocator: alloc,
		names:     make(map[string]struct{}),
		addrs:     make(map[string]struct{}),
	}
}

// AddValidator appends a consensus node. The topology offset is the current
// size, so ports are collision-free across the whole network.
func (t *Topology) AddValidator(name, address string) (*NodeDescriptor, error) {
	return t.add(name, address, RoleValidator)
}

// AddGateway appends a read/relay node exposing RPC and metrics.
func (t *Topology) AddGateway(name, address string) (*NodeDescriptor, error) {
	return t.add(name, address, RoleGateway)
}

func (t *Topology) add(name, address string, role NodeRole) (*NodeDescriptor, error) {
	if !nodeNamePattern.MatchString(name) {
		return nil, ErrInvalidConfigf("invalid node name: %q", name)
	}
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return nil, ErrInvalidConfigf("invalid node address: %q", address)
	}
	if _, ok := t.names[name]; ok {
		return nil, DuplicateNodeError{Field: "name", Value: name}
	}
	if _, ok := t.addrs[address]; ok {
		return nil, DuplicateNodeError{Field: "address", Value: address}
	}

	offset := len(t.nodes)
	node := &NodeDescriptor{
		Name:    name,
		Address: address,
		Role:    role,
		Offset:  offset,
		Ports:   t.allocator.Allocate(offset),
		status:  StatusCreated,
	}
	t.nodes = append(t.nodes, node)
	t.names[name] = struct{}{}
	t.addrs[address] = struct{}{}
	return node, nil
}

// Nodes returns every node in insertion order.
func (t *Topology) Nodes() []*NodeDescriptor {
	return t.nodes
}

// Validators returns the consensus nodes in insertion order.
func (t *Topology) Validators() []*NodeDescriptor {
	return t.byRole(RoleValidator)
}

// Gateways returns the RPC-exposing nodes in insertion order.
func (t *Topology) Gateways() []*NodeDescriptor {
	return t.byRole(RoleGateway)
}

func (t *Topology) byRole(role NodeRole) []*NodeDescriptor {
	var out []*NodeDescriptor
	for _, n := range t.nodes {
		if n.Role == role {
			out = append(out, n)
		}
	}
	return out
}

// Validate checks topology-level invariants: at least one validator, no
// duplicate names or addresses. Add-time checks make duplicates unreachable
// through the public API, but configs loaded from disk go through here too.
func (t *Topology) Validate() error {
	if len(t.Validators()) == 0 {
		return ErrInvalidConfig("at least one validator is required")
	}
	seenNames := make(map[string]struct{}, len(t.nodes))
	seenAddrs := make(map[string]struct{}, len(t.nodes))
	for _, n := range t.nodes {
		if _, ok := seenNames[n.Name]; ok {
			return DuplicateNodeError{Field: "name", Value: n.Name}
		}
		if _, ok := seenAddrs[n.Address]; ok {
			return DuplicateNodeError{Field: "address", Value: n.Address}
		}
		seenNames[n.Name] = struct{}{}
		seenAddrs[n.Address] = struct{}{}
	}
	return nil
}
