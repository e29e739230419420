package types

import (
	"fmt"
	"strings"
)

// Network represents a private proof-of-authority network and its roster.
// JSON field names match the on-disk roster format.
type Network struct {
	Name          string           `json:"networkName"`
	ChainID       int64            `json:"chainId"`
	BlockTime     uint64           `json:"blockTime"`
	BootnodeEnode string           `json:"bootnodeEnode"`
	Nodes         []*Node          `json:"nodes"`
	Alloc         map[string]Funds `json:"alloc,omitempty"`
}

// Node represents a single node of a network
type Node struct {
	Name    string   `json:"nodeName"`
	Port    int      `json:"port"`
	Address string   `json:"address"`
	Role    NodeRole `json:"nodeType"`
}

// Funds is the genesis pre-funding of one account
type Funds struct {
	Balance string `json:"balance"`
}

// NodeRole defines the role of a node
type NodeRole string

const (
	NodeRoleBootnode  NodeRole = "bootnode"
	NodeRoleBootstrap NodeRole = "bootstrap"
	NodeRoleSigner    NodeRole = "signer"
	NodeRoleMember    NodeRole = "member"
	NodeRoleRPC       NodeRole = "rpc"
)

// NodeRoles lists every valid role in declaration order
var NodeRoles = []NodeRole{
	NodeRoleBootnode,
	NodeRoleBootstrap,
	NodeRoleSigner,
	NodeRoleMember,
	NodeRoleRPC,
}

// ParseRole converts a string into a NodeRole, case-insensitively
func ParseRole(s string) (NodeRole, error) {
	for _, r := range NodeRoles {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown node role %q", ErrValidation, s)
}

// NetworkStatus is the running-state view of a network
type NetworkStatus struct {
	Network         string   `json:"networkName"`
	RunningServices []string `json:"runningServices"`
}

// FindNode returns the node with the given name, or nil
func (n *Network) FindNode(name string) *Node {
	if i := n.NodeIndex(name); i >= 0 {
		return n.Nodes[i]
	}
	return nil
}

// NodeIndex returns the position of the named node in the roster, or -1
func (n *Network) NodeIndex(name string) int {
	for i, node := range n.Nodes {
		if node.Name == name {
			return i
		}
	}
	return -1
}

// Signers returns the addresses of signer-role nodes in roster order. An
// address appears once even if several nodes carry it.
func (n *Network) Signers() []string {
	var signers []string
	seen := make(map[string]bool)
	for _, node := range n.Nodes {
		key := strings.TrimPrefix(strings.ToLower(node.Address), "0x")
		if node.Role == NodeRoleSigner && !seen[key] {
			seen[key] = true
			signers = append(signers, node.Address)
		}
	}
	return signers
}

// RemoveNode deletes the named node from the roster. It reports whether the
// node was present.
func (n *Network) RemoveNode(name string) (*Node, bool) {
	i := n.NodeIndex(name)
	if i < 0 {
		return nil, false
	}
	node := n.Nodes[i]
	n.Nodes = append(n.Nodes[:i], n.Nodes[i+1:]...)
	return node, true
}

// Clone returns a deep copy of the network record
func (n *Network) Clone() *Network {
	c := *n
	c.Nodes = make([]*Node, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		cp := *node
		c.Nodes = append(c.Nodes, &cp)
	}
	if n.Alloc != nil {
		c.Alloc = make(map[string]Funds, len(n.Alloc))
		for addr, f := range n.Alloc {
			c.Alloc[addr] = f
		}
	}
	return &c
}
