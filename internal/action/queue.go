package action

import (
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// Queue holds the ordered obligations of the current turn. Only the head is
// legal at any time.
type Queue struct {
	nodes []*Node
}

// NewQueue starts a turn with one Single obligation per kind, in order.
func NewQueue(kinds ...Kind) *Queue {
	q := &Queue{nodes: make([]*Node, 0, len(kinds))}
	for _, k := range kinds {
		q.nodes = append(q.nodes, Single(k))
	}
	return q
}

var errNoAction = apperrors.New(apperrors.CodeNoAction, "no action possible")

// Perform executes k on the head, popping it once final.
func (q *Queue) Perform(k Kind) error {
	head := q.Head()
	if head == nil {
		return errNoAction
	}
	if err := head.Perform(k); err != nil {
		return err
	}
	if head.IsFinal() {
		q.nodes = q.nodes[1:]
	}
	return nil
}

// Skip forecloses k on the head. When that finishes the head, any directly
// following obligations identical to it are foreclosed by the same skip.
func (q *Queue) Skip(k Kind) error {
	head := q.Head()
	if head == nil {
		return errNoAction
	}
	before := head.Clone()
	if err := head.Skip(k); err != nil {
		return err
	}
	if !head.IsFinal() {
		return nil
	}
	q.nodes = q.nodes[1:]
	for len(q.nodes) > 0 && q.nodes[0].Equal(before) {
		q.nodes = q.nodes[1:]
	}
	return nil
}

// AddFirst places nodes, in the given order, ahead of everything queued.
func (q *Queue) AddFirst(nodes ...*Node) {
	q.nodes = append(append(make([]*Node, 0, len(nodes)+len(q.nodes)), nodes...), q.nodes...)
}

// Add appends nodes to the back of the queue, except immediate nodes, which
// go ahead of everything queued.
func (q *Queue) Add(nodes ...*Node) {
	var immediate []*Node
	for _, n := range nodes {
		if n.IsImmediate() {
			immediate = append(immediate, n)
		} else {
			q.nodes = append(q.nodes, n)
		}
	}
	if len(immediate) > 0 {
		q.AddFirst(immediate...)
	}
}

// PossibleKinds returns the kinds legal at the head, or nil when empty.
func (q *Queue) PossibleKinds() []Kind {
	head := q.Head()
	if head == nil {
		return nil
	}
	return head.PossibleKinds()
}

// CanPerform reports whether k is legal at the head.
func (q *Queue) CanPerform(k Kind) bool {
	head := q.Head()
	return head != nil && head.CanPerform(k)
}

// CanSkip reports whether k may be skipped at the head.
func (q *Queue) CanSkip(k Kind) bool {
	head := q.Head()
	return head != nil && head.CanSkip(k)
}

// Head returns the current obligation, or nil.
func (q *Queue) Head() *Node {
	if len(q.nodes) == 0 {
		return nil
	}
	return q.nodes[0]
}

func (q *Queue) IsEmpty() bool {
	return len(q.nodes) == 0
}

func (q *Queue) Len() int {
	return len(q.nodes)
}

// Clear drops every pending obligation.
func (q *Queue) Clear() {
	q.nodes = nil
}
