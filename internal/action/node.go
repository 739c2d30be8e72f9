// Package action implements the legal-action algebra shared by every game:
// a small tree of Single, AnyOf and Choice nodes describing what a player may
// do next, plus the Queue that orders a turn's obligations.
package action

import (
	"fmt"
	"sort"

	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// Kind names one type of action a game understands, e.g. "roll".
type Kind string

type op uint8

const (
	opSingle op = iota + 1
	opAnyOf
	opChoice
)

func (o op) String() string {
	switch o {
	case opSingle:
		return "single"
	case opAnyOf:
		return "any"
	case opChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// Node is one element of the algebra. The zero value is not usable; build
// nodes with Single, AnyOf and Choice.
type Node struct {
	op        op
	kind      Kind
	done      bool
	immediate bool
	children  []*Node
}

// Single is legal only for kind k and becomes final once performed.
// It can never be skipped.
func Single(k Kind) *Node {
	return &Node{op: opSingle, kind: k}
}

// AnyOf holds optional obligations that may be performed in any order.
func AnyOf(nodes ...*Node) *Node {
	return &Node{op: opAnyOf, children: append([]*Node(nil), nodes...)}
}

// Choice holds mutually exclusive branches. Entering one discards the rest.
func Choice(nodes ...*Node) *Node {
	return &Node{op: opChoice, children: append([]*Node(nil), nodes...)}
}

// Immediate returns a copy of n flagged as immediate, meaning it is resolved
// ahead of anything queued earlier.
func Immediate(n *Node) *Node {
	c := n.Clone()
	c.immediate = true
	return c
}

func cannotPerform(k Kind) error {
	return apperrors.WithMetadata(apperrors.CodeCannotPerformAction,
		fmt.Sprintf("cannot perform %q", k), map[string]string{"kind": string(k)})
}

func cannotSkip(k Kind) error {
	return apperrors.WithMetadata(apperrors.CodeCannotSkipAction,
		fmt.Sprintf("cannot skip %q", k), map[string]string{"kind": string(k)})
}

// Perform executes kind k against the node.
func (n *Node) Perform(k Kind) error {
	switch n.op {
	case opSingle:
		if n.done || n.kind != k {
			return cannotPerform(k)
		}
		n.done = true
		return nil

	case opAnyOf:
		for i, child := range n.children {
			if !child.CanPerform(k) {
				continue
			}
			if err := child.Perform(k); err != nil {
				return err
			}
			if child.IsFinal() {
				n.children = append(n.children[:i], n.children[i+1:]...)
			}
			return nil
		}
		return cannotPerform(k)

	case opChoice:
		for _, child := range n.children {
			if !child.CanPerform(k) {
				continue
			}
			if err := child.Perform(k); err != nil {
				return err
			}
			if child.IsFinal() {
				n.children = nil
			} else {
				n.children = []*Node{child}
			}
			return nil
		}
		return cannotPerform(k)
	}
	return cannotPerform(k)
}

// Skip forecloses kind k. Inside an AnyOf every branch reachable through k is
// dropped in one pass; a Choice commits to the branch that k enters.
func (n *Node) Skip(k Kind) error {
	switch n.op {
	case opAnyOf:
		kept := make([]*Node, 0, len(n.children))
		matched := false
		for _, child := range n.children {
			if !child.CanPerform(k) {
				kept = append(kept, child)
				continue
			}
			matched = true
			if child.op == opSingle || !child.CanSkip(k) {
				continue
			}
			if err := child.Skip(k); err != nil {
				return err
			}
			if !child.IsFinal() {
				kept = append(kept, child)
			}
		}
		if !matched {
			return cannotSkip(k)
		}
		n.children = kept
		return nil

	case opChoice:
		for _, child := range n.children {
			if !child.CanPerform(k) {
				continue
			}
			if !child.CanSkip(k) {
				return cannotSkip(k)
			}
			if err := child.Skip(k); err != nil {
				return err
			}
			if child.IsFinal() {
				n.children = nil
			} else {
				n.children = []*Node{child}
			}
			return nil
		}
	}
	return cannotSkip(k)
}

// IsFinal reports whether the node has no remaining obligations.
func (n *Node) IsFinal() bool {
	if n.op == opSingle {
		return n.done
	}
	return len(n.children) == 0
}

// IsImmediate reports whether the node was built with Immediate.
func (n *Node) IsImmediate() bool {
	return n.immediate
}

// CanPerform reports whether Perform(k) would succeed.
func (n *Node) CanPerform(k Kind) bool {
	if n.op == opSingle {
		return !n.done && n.kind == k
	}
	for _, child := range n.children {
		if child.CanPerform(k) {
			return true
		}
	}
	return false
}

// CanSkip reports whether Skip(k) would succeed.
func (n *Node) CanSkip(k Kind) bool {
	switch n.op {
	case opAnyOf:
		return n.CanPerform(k)
	case opChoice:
		for _, child := range n.children {
			if child.CanPerform(k) {
				return child.CanSkip(k)
			}
		}
	}
	return false
}

// PossibleKinds returns the sorted, distinct kinds currently legal.
func (n *Node) PossibleKinds() []Kind {
	seen := make(map[Kind]struct{})
	n.collect(seen)
	kinds := make([]Kind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (n *Node) collect(into map[Kind]struct{}) {
	if n.op == opSingle {
		if !n.done {
			into[n.kind] = struct{}{}
		}
		return
	}
	for _, child := range n.children {
		child.collect(into)
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := &Node{op: n.op, kind: n.kind, done: n.done, immediate: n.immediate}
	if n.children != nil {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.Clone()
		}
	}
	return c
}

// Equal reports whether both nodes describe the same remaining obligations.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.op != o.op || n.kind != o.kind || n.done != o.done || n.immediate != o.immediate {
		return false
	}
	if len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	if n.op == opSingle {
		return string(n.kind)
	}
	return fmt.Sprintf("%s%v", n.op, n.children)
}
