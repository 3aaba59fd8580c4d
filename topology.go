package netsim

// topology.go connects named nodes with directed Channels and relays messages
// between nodes that are not directly linked.
//
// The approach follows the usual one for discrete network models: the topology is
// converted into a gonum graph, and a shortest path (every link weighted 1, so
// fewest hops) is computed from the source.  Shortest-path trees are cached by source.
//
// A message sent between two nodes carries a zero-length route header naming its
// destination.  The header costs nothing on the wire.  At each hop the relay reads
// it to find the next link, and the last hop pops it before handing the message
// to the destination's Receiver.

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrUnknownNode is returned when a node name has not been added to the topology
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoRoute is returned when no sequence of links joins two nodes
	ErrNoRoute = errors.New("no route")
)

type intPair struct {
	i, j int
}

// topoNode is a node of the topology
type topoNode struct {
	name  string
	id    int
	rcv   Receiver
	relay *hopRelay
}

// Topology is a set of named nodes joined by directed channels
type Topology struct {
	msgs     *MessageFactory
	nodes    []*topoNode
	byName   map[string]*topoNode
	links    map[intPair]*Channel
	graph    *simple.DirectedGraph
	cachedSP map[int]path.Shortest
}

// CreateTopology is a constructor.  msgs makes the route headers.  The channels
// given to Connect carry the simulator the topology runs on.
func CreateTopology(msgs *MessageFactory) *Topology {
	tp := new(Topology)
	tp.msgs = msgs
	tp.nodes = make([]*topoNode, 0)
	tp.byName = make(map[string]*topoNode)
	tp.links = make(map[intPair]*Channel)
	tp.graph = simple.NewDirectedGraph()
	tp.cachedSP = make(map[int]path.Shortest)
	return tp
}

// AddNode adds a node whose messages are delivered to rcv
func (tp *Topology) AddNode(name string, rcv Receiver) error {
	if rcv == nil {
		return fmt.Errorf("node %s needs a receiver", name)
	}
	if _, present := tp.byName[name]; present {
		return fmt.Errorf("node %s already in topology", name)
	}
	node := &topoNode{name: name, id: len(tp.nodes), rcv: rcv}
	node.relay = &hopRelay{tp: tp, node: node}
	tp.nodes = append(tp.nodes, node)
	tp.byName[name] = node
	tp.graph.AddNode(simple.Node(node.id))
	return nil
}

// Connect makes chnl the link from src to dst
func (tp *Topology) Connect(src, dst string, chnl *Channel) error {
	if chnl == nil {
		return fmt.Errorf("link %s->%s needs a channel", src, dst)
	}
	srcNode, dstNode, err := tp.lookup(src, dst)
	if err != nil {
		return err
	}
	if srcNode == dstNode {
		return fmt.Errorf("cannot link %s to itself", src)
	}
	key := intPair{i: srcNode.id, j: dstNode.id}
	if _, present := tp.links[key]; present {
		return fmt.Errorf("link %s->%s already in topology", src, dst)
	}
	tp.links[key] = chnl
	tp.graph.SetEdge(simple.Edge{F: simple.Node(srcNode.id), T: simple.Node(dstNode.id)})

	// the trees computed so far may no longer be shortest
	tp.cachedSP = make(map[int]path.Shortest)
	return nil
}

// Link returns the channel from src to dst, if there is one
func (tp *Topology) Link(src, dst string) (*Channel, bool) {
	srcNode, dstNode, err := tp.lookup(src, dst)
	if err != nil {
		return nil, false
	}
	chnl, present := tp.links[intPair{i: srcNode.id, j: dstNode.id}]
	return chnl, present
}

func (tp *Topology) lookup(src, dst string) (*topoNode, *topoNode, error) {
	srcNode, present := tp.byName[src]
	if !present {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNode, src)
	}
	dstNode, present := tp.byName[dst]
	if !present {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNode, dst)
	}
	return srcNode, dstNode, nil
}

// getSPTree returns the shortest path tree rooted at node id from, computing and caching it if needed
func (tp *Topology) getSPTree(from int) path.Shortest {
	spTree, present := tp.cachedSP[from]
	if present {
		return spTree
	}
	spTree = path.DijkstraFrom(simple.Node(from), tp.graph)
	tp.cachedSP[from] = spTree
	return spTree
}

// Route returns the names of the nodes on a fewest-hop path from src to dst, inclusive
func (tp *Topology) Route(src, dst string) ([]string, error) {
	srcNode, dstNode, err := tp.lookup(src, dst)
	if err != nil {
		return nil, err
	}
	if srcNode == dstNode {
		return []string{src}, nil
	}
	nodeSeq, _ := tp.getSPTree(srcNode.id).To(int64(dstNode.id))
	if len(nodeSeq) == 0 {
		return nil, fmt.Errorf("%w from %s to %s", ErrNoRoute, src, dst)
	}
	route := make([]string, 0, len(nodeSeq))
	for _, gn := range nodeSeq {
		route = append(route, tp.nodes[gn.ID()].name)
	}
	return route, nil
}

// nextHop returns the link out of node on the way to dst
func (tp *Topology) nextHop(node *topoNode, dst *topoNode) (*Channel, *topoNode, error) {
	nodeSeq, _ := tp.getSPTree(node.id).To(int64(dst.id))
	if len(nodeSeq) < 2 {
		return nil, nil, fmt.Errorf("%w from %s to %s", ErrNoRoute, node.name, dst.name)
	}
	nxt := tp.nodes[nodeSeq[1].ID()]
	return tp.links[intPair{i: node.id, j: nxt.id}], nxt, nil
}

// Send moves msg from src to dst, across as many links as the route needs.
// A message sent from a node to itself is delivered at once.
func (tp *Topology) Send(src, dst string, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("cannot send a nil message")
	}
	srcNode, dstNode, err := tp.lookup(src, dst)
	if err != nil {
		return err
	}
	if srcNode == dstNode {
		return dstNode.rcv.Receive(msg)
	}
	hdr := tp.msgs.CreateMessage([]byte(dstNode.name), 0)
	msg.PushHeader(hdr)
	if err := tp.forward(srcNode, dstNode, msg); err != nil {
		msg.PopHeader()
		return err
	}
	return nil
}

func (tp *Topology) forward(node, dst *topoNode, msg *Message) error {
	chnl, nxt, err := tp.nextHop(node, dst)
	if err != nil {
		return err
	}
	return chnl.Send(nxt.relay, msg)
}

// hopRelay receives messages arriving at a node from one of its links
type hopRelay struct {
	tp   *Topology
	node *topoNode
}

func (hr *hopRelay) Receive(msg *Message) error {
	hdr := msg.PeekHeader()
	if hdr == nil {
		return fmt.Errorf("node %s: message %d arrived without a route header", hr.node.name, msg.ID())
	}
	dst, present := hr.tp.byName[string(hdr.Payload())]
	if !present {
		return fmt.Errorf("node %s: %w: %s", hr.node.name, ErrUnknownNode, hdr.Payload())
	}
	if dst == hr.node {
		msg.PopHeader()
		return hr.node.rcv.Receive(msg)
	}
	return hr.tp.forward(hr.node, dst, msg)
}

// Nodes returns the names of the nodes, in the order they were added
func (tp *Topology) Nodes() []string {
	names := make([]string, 0, len(tp.nodes))
	for _, node := range tp.nodes {
		names = append(names, node.name)
	}
	return names
}
