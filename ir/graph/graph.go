// Package graph holds the decorated node and edge structure produced by a
// document parse. Nodes point at raw values; edges carry the relation.
// Downstream layers may add their own nodes and edges.
package graph

import (
	"fmt"
	"strconv"

	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/recovery"
)

type NodeID int

type NodeType int

const (
	NodeUnknown NodeType = iota
	NodeTrailer
	NodeCatalog
	NodePages
	NodePage
	NodeMetadata
	NodeEncrypt
	NodeObject
	// NodeOther marks the anomaly sentinel and its anomaly records.
	NodeOther
)

func (t NodeType) String() string {
	switch t {
	case NodeUnknown:
		return "unknown"
	case NodeTrailer:
		return "trailer"
	case NodeCatalog:
		return "catalog"
	case NodePages:
		return "pages"
	case NodePage:
		return "page"
	case NodeMetadata:
		return "metadata"
	case NodeEncrypt:
		return "encrypt"
	case NodeObject:
		return "object"
	case NodeOther:
		return "other"
	default:
		return fmt.Sprintf("node(%d)", int(t))
	}
}

type EdgeType int

const (
	EdgeChild EdgeType = iota
	EdgeReference
	EdgeParent
	EdgeResource
	EdgeAnnotation
	EdgeContent
)

func (t EdgeType) String() string {
	switch t {
	case EdgeChild:
		return "child"
	case EdgeReference:
		return "reference"
	case EdgeParent:
		return "parent"
	case EdgeResource:
		return "resource"
	case EdgeAnnotation:
		return "annotation"
	case EdgeContent:
		return "content"
	default:
		return fmt.Sprintf("edge(%d)", int(t))
	}
}

// Node is one vertex. Ref is meaningful only when HasRef is set.
type Node struct {
	ID         NodeID
	Type       NodeType
	Ref        raw.ObjectRef
	HasRef     bool
	Value      raw.Object
	Properties map[string]string
}

type Edge struct {
	From NodeID
	To   NodeID
	Type EdgeType
}

// Graph is not safe for concurrent mutation.
type Graph struct {
	nodes    []*Node
	edges    []Edge
	out      map[NodeID][]int
	objects  map[raw.ObjectRef]NodeID
	root     NodeID
	hasRoot  bool
	sentinel NodeID
	hasSent  bool
	anoms    []recovery.Anomaly
}

func New() *Graph {
	return &Graph{
		out:     make(map[NodeID][]int),
		objects: make(map[raw.ObjectRef]NodeID),
	}
}

// AddNode appends a node without an object identity.
func (g *Graph) AddNode(t NodeType, v raw.Object) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{ID: id, Type: t, Value: v})
	return id
}

// AddObjectNode returns the node already registered for ref, or adds one.
// The second result reports whether a node was created.
func (g *Graph) AddObjectNode(ref raw.ObjectRef, t NodeType, v raw.Object) (NodeID, bool) {
	if id, ok := g.objects[ref]; ok {
		return id, false
	}
	id := g.AddNode(t, v)
	n := g.nodes[id]
	n.Ref, n.HasRef = ref, true
	g.objects[ref] = id
	return id, true
}

func (g *Graph) NodeForObject(ref raw.ObjectRef) (NodeID, bool) {
	id, ok := g.objects[ref]
	return id, ok
}

// Node returns nil for an unknown id.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

func (g *Graph) Nodes() []*Node { return g.nodes }
func (g *Graph) Len() int       { return len(g.nodes) }

// AddEdge links two existing nodes. Repeating an identical edge is a no-op.
func (g *Graph) AddEdge(from, to NodeID, t EdgeType) error {
	if g.Node(from) == nil || g.Node(to) == nil {
		return fmt.Errorf("edge %d -> %d: unknown node", from, to)
	}
	g.link(from, to, t)
	return nil
}

// link adds an edge between nodes known to exist.
func (g *Graph) link(from, to NodeID, t EdgeType) {
	for _, i := range g.out[from] {
		if e := g.edges[i]; e.To == to && e.Type == t {
			return
		}
	}
	g.out[from] = append(g.out[from], len(g.edges))
	g.edges = append(g.edges, Edge{From: from, To: to, Type: t})
}

// Edges lists the outgoing edges of id in insertion order.
func (g *Graph) Edges(id NodeID) []Edge {
	idx := g.out[id]
	res := make([]Edge, 0, len(idx))
	for _, i := range idx {
		res = append(res, g.edges[i])
	}
	return res
}

// Targets lists the nodes reached from id over edges of type t.
func (g *Graph) Targets(id NodeID, t EdgeType) []NodeID {
	var res []NodeID
	for _, i := range g.out[id] {
		if g.edges[i].Type == t {
			res = append(res, g.edges[i].To)
		}
	}
	return res
}

func (g *Graph) Children(id NodeID) []NodeID { return g.Targets(id, EdgeChild) }

func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) SetRoot(id NodeID) {
	g.root, g.hasRoot = id, true
}

func (g *Graph) Root() (NodeID, bool) { return g.root, g.hasRoot }

// NodesOfType returns the ids of every node of type t, in creation order.
func (g *Graph) NodesOfType(t NodeType) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		if n.Type == t {
			res = append(res, n.ID)
		}
	}
	return res
}

// RecordAnomaly attaches a to the sentinel node, creating it on first use.
// Each anomaly becomes a NodeOther child carrying its code and message.
func (g *Graph) RecordAnomaly(a recovery.Anomaly) {
	if !g.hasSent {
		g.sentinel = g.AddNode(NodeOther, raw.NullObj{})
		g.nodes[g.sentinel].Properties = map[string]string{"role": "anomalies"}
		g.hasSent = true
	}
	id := g.AddNode(NodeOther, raw.NullObj{})
	props := map[string]string{
		"anomaly_code":    a.Code,
		"anomaly_message": a.Message,
		"recoverable":     strconv.FormatBool(a.Recoverable),
	}
	if a.HasOffset {
		props["offset"] = strconv.FormatInt(a.Offset, 10)
	}
	g.nodes[id].Properties = props
	g.link(g.sentinel, id, EdgeChild)
	g.anoms = append(g.anoms, a)
	g.nodes[g.sentinel].Properties["anomaly_count"] = strconv.Itoa(len(g.anoms))
}

// Anomalies returns the anomalies recorded so far, oldest first.
func (g *Graph) Anomalies() []recovery.Anomaly {
	return append([]recovery.Anomaly(nil), g.anoms...)
}

// Sentinel returns the anomaly sentinel node, if any anomaly was recorded.
func (g *Graph) Sentinel() (NodeID, bool) { return g.sentinel, g.hasSent }
