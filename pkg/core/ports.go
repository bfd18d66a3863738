package core

// Default port bases match the node binary's stock configuration. Every kind
// steps by the same amount per topology offset, so two nodes with different
// offsets can never share a port of any kind.
const (
	DefaultBaseP2P     = 2001
	DefaultBaseRPC     = 9000
	DefaultBaseMetrics = 9184
	DefaultPortStep    = 10
)

// Ports is one node's derived port triple.
type Ports struct {
	P2P     int
	RPC     int
	Metrics int
}

// PortAllocator derives per-node ports from a topology offset.
type PortAllocator struct {
	BaseP2P     int
	BaseRPC     int
	BaseMetrics int
	Step        int
}

// DefaultPortAllocator returns an allocator with the stock bases and step.
func DefaultPortAllocator() PortAllocator {
	return PortAllocator{
		BaseP2P:     DefaultBaseP2P,
		BaseRPC:     DefaultBaseRPC,
		BaseMetrics: DefaultBaseMetrics,
		Step:        DefaultPortStep,
	}
}

// Allocate maps a topology offset to its port triple. Pure and total: the
// caller guarantees offset >= 0.
func (a PortAllocator) Allocate(offset int) Ports {
	return Ports{
		P2P:     a.BaseP2P + offset*a.Step,
		RPC:     a.BaseRPC + offset*a.Step,
		Metrics: a.BaseMetrics + offset*a.Step,
	}
}
