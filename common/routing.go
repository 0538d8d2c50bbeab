package common

import (
	"fmt"
	"strings"
)

// Workflow selects the consumer queue a routing key targets.
type Workflow string

const (
	WorkflowIndex   Workflow = "index"
	WorkflowCatalog Workflow = "cat"
	WorkflowTransfer Workflow = "tran"
	WorkflowArchive Workflow = "archive"
	WorkflowRoute   Workflow = "route"
	WorkflowMonitor Workflow = "monitor"
	WorkflowLog     Workflow = "log"
)

// Action selects the step within a workflow.
type Action string

const (
	ActionInit     Action = "init"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionFailed   Action = "failed"
	ActionNext     Action = "next"
	ActionWild     Action = "*"
)

var validActions = map[Action]bool{
	ActionInit: true, ActionStart: true, ActionComplete: true,
	ActionFailed: true, ActionNext: true, ActionWild: true,
}

// RoutingKey is the parsed form of a dot-separated three-tuple
// "<root>.<workflow>.<action>" (spec.md §4.1).
type RoutingKey struct {
	Root     string
	Workflow Workflow
	Action   Action
}

// String renders the routing key back to its wire form.
func (rk RoutingKey) String() string {
	return fmt.Sprintf("%s.%s.%s", rk.Root, rk.Workflow, rk.Action)
}

// ParseRoutingKey validates and decomposes a routing key. It rejects any
// string whose dot-split arity is not exactly 3, and any action outside
// the enumerated verb set (testable property 11 in spec.md §8).
func ParseRoutingKey(s string) (RoutingKey, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return RoutingKey{}, fmt.Errorf("%w: %q has %d parts, want 3", ErrInvalidRoutingKey, s, len(parts))
	}
	action := Action(parts[2])
	if !validActions[action] {
		return RoutingKey{}, fmt.Errorf("%w: %q is not a recognised action", ErrInvalidRoutingKey, parts[2])
	}
	return RoutingKey{
		Root:     parts[0],
		Workflow: Workflow(parts[1]),
		Action:   action,
	}, nil
}

// NewRoutingKey builds a RoutingKey from its parts without re-parsing a
// string, for publishers constructing a key to send.
func NewRoutingKey(root string, workflow Workflow, action Action) RoutingKey {
	return RoutingKey{Root: root, Workflow: workflow, Action: action}
}

// WithWorkflow returns a copy of the key targeting a different workflow,
// keeping the root and action.
func (rk RoutingKey) WithWorkflow(w Workflow) RoutingKey {
	rk.Workflow = w
	return rk
}

// WithAction returns a copy of the key with a different action.
func (rk RoutingKey) WithAction(a Action) RoutingKey {
	rk.Action = a
	return rk
}
