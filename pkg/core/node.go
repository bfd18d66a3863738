package core

import "fmt"

// NodeRole distinguishes the two node shapes in a test network.
type NodeRole string

const (
	// RoleValidator participates in consensus and never exposes RPC.
	RoleValidator NodeRole = "validator"
	// RoleGateway syncs from validators and exposes the JSON-RPC surface.
	RoleGateway NodeRole = "gateway"
)

func (r NodeRole) String() string {
	return string(r)
}

// NodeStatus tracks a node through the boot sequence. Transitions are forward
// only, except Failed which is reachable from any state.
type NodeStatus string

const (
	StatusCreated        NodeStatus = "created"
	StatusConfigInjected NodeStatus = "config-injected"
	StatusProcessStarted NodeStatus = "process-started"
	StatusPortConfirmed  NodeStatus = "port-confirmed"
	StatusRunning        NodeStatus = "running"
	StatusFailed         NodeStatus = "failed"
)

var statusOrder = map[NodeStatus]int{
	StatusCreated:        0,
	StatusConfigInjected: 1,
	StatusProcessStarted: 2,
	StatusPortConfirmed:  3,
	StatusRunning:        4,
}

// NodeDescriptor is the identity record for one node instance. Ports are
// computed once at add time and immutable thereafter.
type NodeDescriptor struct {
	Name    string
	Address string
	Role    NodeRole
	Offset  int
	Ports   Ports

	status     NodeStatus
	failReason string
}

// ContainerName derives the node's isolated-environment handle.
func (n *NodeDescriptor) ContainerName() string {
	return "mn." + n.Name
}

// P2PAddress returns the node's advertised P2P multiaddr. The transport tag
// belongs to the node binary's expected config schema, so the caller passes it.
func (n *NodeDescriptor) P2PAddress(transport string) string {
	return fmt.Sprintf("/ip4/%s/%s/%d", n.Address, transport, n.Ports.P2P)
}

// RPCEndpoint returns the HTTP endpoint of the node's JSON-RPC surface.
// Only meaningful for gateways; validators never serve it.
func (n *NodeDescriptor) RPCEndpoint() string {
	return fmt.Sprintf("http://%s:%d", n.Address, n.Ports.RPC)
}

// MetricsEndpoint returns the node's metrics scrape URL.
func (n *NodeDescriptor) MetricsEndpoint() string {
	return fmt.Sprintf("http://%s:%d/metrics", n.Address, n.Ports.Metrics)
}

// Status returns the node's current lifecycle status.
func (n *NodeDescriptor) Status() NodeStatus {
	if n.status == "" {
		return StatusCreated
	}
	return n.status
}

// FailReason returns the recorded cause when the node is Failed.
func (n *NodeDescriptor) FailReason() string {
	return n.failReason
}

// Advance moves the node forward to next. Moving backwards or out of Failed
// is a programming error and is rejected.
func (n *NodeDescriptor) Advance(next NodeStatus) error {
	cur := n.Status()
	if cur == StatusFailed {
		return ErrInvalidConfigf("node %s already failed: %s", n.Name, n.failReason)
	}
	no, ok := statusOrder[next]
	if !ok {
		return ErrInvalidConfigf("node %s: invalid status %q", n.Name, next)
	}
	if no <= statusOrder[cur] && next != cur {
		return ErrInvalidConfigf("node %s: status cannot move %s -> %s", n.Name, cur, next)
	}
	n.status = next
	return nil
}

// Fail marks the node Failed with a human-readable cause. Reachable from any
// state; failed nodes are never retried inside the same boot attempt.
func (n *NodeDescriptor) Fail(reason string) {
	n.status = StatusFailed
	n.failReason = reason
}

// Started reports whether the node process was ever launched. Teardown only
// signals nodes that got this far.
func (n *NodeDescriptor) Started() bool {
	switch n.status {
	case StatusProcessStarted, StatusPortConfirmed, StatusRunning:
		return true
	}
	return false
}
