package creact

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/creact-labs/creact/converge"
	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/instance"
	"github.com/creact-labs/creact/provider"
	"github.com/creact-labs/creact/reconcile"
	"github.com/creact-labs/creact/render"
)

// UseInstance declares an instance node from inside a component body: an
// undefined prop withholds materialization and returns a placeholder
// accessor bundle instead (spec §4.3, §4.4).
func UseInstance(constructType string, props map[string]any) instance.Accessors {
	return render.UseInstance(constructType, props)
}

// Run renders root against prv to a fixed point and returns the live
// instance nodes (spec §6). previousNodes, if given, seeds hydration the
// same way a backend-persisted run would; Run itself never touches a
// Backend — persisting the returned nodes for the next Run call is the
// caller's job (spec §1: "persisting state itself" is an external
// collaborator's concern, not the core's). For lock-guarded, persisted
// convergence across process restarts, use converge.Driver directly.
func Run(root element.Element, prv provider.Provider, previousNodes ...[]*instance.Node) ([]*instance.Node, error) {
	var previous []*instance.Node
	if len(previousNodes) > 0 {
		previous = previousNodes[0]
	}

	result, err := converge.Loop(context.Background(), logr.Discard(), prv, root, previous, converge.Options{})
	if err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

// Reconcile diffs previous against current and computes the
// dependency-ordered ChangeSet, without applying anything (spec §4.6, §6).
func Reconcile(previous, current []*instance.Node) (*reconcile.ChangeSet, error) {
	return reconcile.Diff(previous, current)
}
