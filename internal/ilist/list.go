// Package ilist implements an intrusive doubly linked list, the Go
// rendering of libuv's QUEUE macros: embedding a Node costs no extra
// allocation and insert/remove are O(1).
package ilist

// Node is an intrusive list link. Embed it in the struct that needs to be
// queued; the zero value reports Empty, but Init must be called before the
// node is used as a list head or removed. Value should be set
// once, at construction, to the address of the struct the node is embedded
// in, so that Range callbacks can recover the owner without a separate map.
type Node struct {
	prev, next *Node
	Value      interface{}
}

// Init makes n an empty list head (or resets a detached node).
func (n *Node) Init() {
	n.prev = n
	n.next = n
}

// Empty reports whether n is not linked into any list (or is itself an
// empty list head).
func (n *Node) Empty() bool {
	return n.next == n || n.next == nil
}

// InsertTail appends node after the tail of the list headed by n.
func (n *Node) InsertTail(node *Node) {
	node.prev = n.prev
	node.next = n
	node.prev.next = node
	n.prev = node
}

// InsertHead prepends node at the head of the list headed by n.
func (n *Node) InsertHead(node *Node) {
	node.next = n.next
	node.prev = n
	node.next.prev = node
	n.next = node
}

// Remove unlinks n from whatever list it is part of and reinitializes it.
func (n *Node) Remove() {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.Init()
}

// Move detaches every element from the list headed by src and appends it,
// in order, to the empty list headed by dst. src is left empty.
func Move(src, dst *Node) {
	if src.Empty() {
		dst.Init()
		return
	}
	dst.next = src.next
	dst.next.prev = dst
	dst.prev = src.prev
	dst.prev.next = dst
	src.Init()
}

// Range walks the list headed by n from head to tail, calling fn on each
// linked node. fn must not remove nodes other than the one it was called
// with (removing the current node mid-walk is safe).
func Range(head *Node, fn func(*Node)) {
	q := head.next
	for q != head {
		next := q.next
		fn(q)
		q = next
	}
}
