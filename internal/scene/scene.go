package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

var ErrLoadFile = errors.New("scene: load file")

// Kind tells what a node stands for.
type Kind uint8

const (
	KindGroup Kind = iota
	KindModel
	KindBillboard
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindModel:
		return "model"
	case KindBillboard:
		return "billboard"
	}
	return "unknown"
}

// Node is an element of the scene graph.
type Node struct {
	Name   string
	Source string
	Kind   Kind

	parent   *Node
	children []*Node
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) add(c *Node) {
	if c.parent != nil {
		c.parent.remove(c)
	}
	c.parent = n
	n.children = append(n.children, c)
}

func (n *Node) remove(c *Node) bool {
	for i, x := range n.children {
		if x == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Scene is what the game manager needs from a scene graph.
type Scene interface {
	LoadFile(path string) (*Node, error)
	AddChild(n *Node)
	RemoveChild(n *Node)
}

// NewBillboard creates the placeholder drawn for actors without geometry.
func NewBillboard(label string) *Node {
	return &Node{Name: label, Kind: KindBillboard}
}

// Graph is an in-memory scene. Loaded files are remembered by path so the
// same model is only stat'ed once.
type Graph struct {
	mu     sync.Mutex
	root   *Node
	dir    string
	loaded map[string]struct{}
	log    *zap.Logger
}

// NewGraph creates an empty scene. Relative paths given to LoadFile resolve
// against dir.
func NewGraph(dir string, log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{
		root:   &Node{Name: "root", Kind: KindGroup},
		dir:    dir,
		loaded: make(map[string]struct{}),
		log:    log,
	}
}

func (g *Graph) Root() *Node { return g.root }

// LoadFile returns a fresh model node for the file at path.
func (g *Graph) LoadFile(path string) (*Node, error) {
	full := path
	if g.dir != "" && !filepath.IsAbs(path) {
		full = filepath.Join(g.dir, path)
	}

	g.mu.Lock()
	_, seen := g.loaded[full]
	g.mu.Unlock()
	if !seen {
		if _, err := os.Stat(full); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrLoadFile, path, err)
		}
		g.mu.Lock()
		g.loaded[full] = struct{}{}
		g.mu.Unlock()
		g.log.Debug("model loaded", zap.String("path", full))
	}
	return &Node{Name: filepath.Base(path), Source: full, Kind: KindModel}, nil
}

func (g *Graph) AddChild(n *Node) {
	if n == nil {
		return
	}
	g.mu.Lock()
	g.root.add(n)
	g.mu.Unlock()
}

func (g *Graph) RemoveChild(n *Node) {
	if n == nil {
		return
	}
	g.mu.Lock()
	g.root.remove(n)
	g.mu.Unlock()
}

// Count returns the number of nodes directly under the root.
func (g *Graph) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.root.children)
}
