package action

import (
	"encoding/json"
	"fmt"
)

type nodeJSON struct {
	Op        string  `json:"op"`
	Kind      Kind    `json:"kind,omitempty"`
	Done      bool    `json:"done,omitempty"`
	Immediate bool    `json:"immediate,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// MarshalJSON encodes the node so a game can persist its queue inside its
// state document.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{
		Op:        n.op.String(),
		Kind:      n.kind,
		Done:      n.done,
		Immediate: n.immediate,
		Children:  n.children,
	})
}

// UnmarshalJSON decodes a node written by MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Op {
	case "single":
		n.op = opSingle
	case "any":
		n.op = opAnyOf
	case "choice":
		n.op = opChoice
	default:
		return fmt.Errorf("unknown action node op %q", raw.Op)
	}
	n.kind = raw.Kind
	n.done = raw.Done
	n.immediate = raw.Immediate
	n.children = raw.Children
	return nil
}

// MarshalJSON encodes the queue as an ordered array of nodes.
func (q *Queue) MarshalJSON() ([]byte, error) {
	if q.nodes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q.nodes)
}

// UnmarshalJSON decodes a queue written by MarshalJSON.
func (q *Queue) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &q.nodes)
}
