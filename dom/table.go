package dom

import (
	"golang.org/x/net/html"
	"runtime"
	"sync"
	"weak"
)

// NodeTable associates values with nodes without owning them. Keys are weak
// pointers; once a node is garbage collected its entry is dropped.
//
// Values are held strongly. A value that references its own node, such as a
// listener closure capturing its element, keeps the node reachable and the
// entry stays until it is deleted explicitly.
type NodeTable[V any] struct {
	mu sync.Mutex
	m  map[weak.Pointer[html.Node]]V
	// keys with a cleanup attached; survives Delete so that re-adding a
	// node does not attach another one
	registered map[weak.Pointer[html.Node]]struct{}
}

func NewNodeTable[V any]() *NodeTable[V] {
	return &NodeTable[V]{
		m:          make(map[weak.Pointer[html.Node]]V),
		registered: make(map[weak.Pointer[html.Node]]struct{}),
	}
}

func (t *NodeTable[V]) Get(n *html.Node) (v V, ok bool) {
	if n == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok = t.m[weak.Make(n)]
	return
}

func (t *NodeTable[V]) Set(n *html.Node, v V) {
	if n == nil {
		return
	}
	k := weak.Make(n)
	t.mu.Lock()
	t.m[k] = v
	_, registered := t.registered[k]
	if !registered {
		t.registered[k] = struct{}{}
	}
	t.mu.Unlock()
	if !registered {
		runtime.AddCleanup(n, t.drop, k)
	}
}

func (t *NodeTable[V]) Delete(n *html.Node) {
	if n == nil {
		return
	}
	t.mu.Lock()
	delete(t.m, weak.Make(n))
	t.mu.Unlock()
}

// Len counts entries, including ones whose node died but whose cleanup has
// not run yet.
func (t *NodeTable[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

func (t *NodeTable[V]) cleanups() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.registered)
}

func (t *NodeTable[V]) drop(k weak.Pointer[html.Node]) {
	t.mu.Lock()
	delete(t.m, k)
	delete(t.registered, k)
	t.mu.Unlock()
}
