package converge

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/examples/echoprovider"
	"github.com/creact-labs/creact/instance"
	"github.com/creact-labs/creact/render"
)

// chainComponentA/B/C model a 3-level dependency chain: B's props depend on
// A's url output, C's on B's arn output. Each wraps its children in a host
// tag matching its own construct type, so the child's fiber path nests
// under the resource's own instance path and the dependency graph picks up
// the chain by path ancestry.
func chainComponentA(element.Props) element.Element {
	acc := render.UseInstance("A", map[string]any{"name": "a"})
	return element.CreateElement("A", element.Props{},
		element.CreateElement(chainComponentB, element.Props{"aAcc": acc}))
}

func chainComponentB(props element.Props) element.Element {
	acc := props["aAcc"].(instance.Accessors)
	bAcc := render.UseInstance("B", map[string]any{"url": acc.Output("url")})
	return element.CreateElement("B", element.Props{},
		element.CreateElement(chainComponentC, element.Props{"bAcc": bAcc}))
}

func chainComponentC(props element.Props) element.Element {
	acc := props["bAcc"].(instance.Accessors)
	render.UseInstance("C", map[string]any{"arn": acc.Output("arn")})
	return element.CreateElement(element.Fragment, nil)
}

func chainProvider() *echoprovider.Provider {
	return echoprovider.New().
		Handle("A", func(n *instance.Node) map[string]any { return map[string]any{"url": "http://a"} }).
		Handle("B", func(n *instance.Node) map[string]any { return map[string]any{"arn": "arn:b"} }).
		Handle("C", func(n *instance.Node) map[string]any { return map[string]any{"done": true} })
}

func TestLoop_Chain(t *testing.T) {
	root := element.CreateElement(chainComponentA, element.Props{})
	prv := chainProvider()

	result, err := Loop(context.Background(), logr.Discard(), prv, root, nil, Options{})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 3)

	byType := make(map[string]*instance.Node, 3)
	for _, n := range result.Nodes {
		byType[n.ConstructType] = n
	}
	require.Contains(t, byType, "A")
	require.Contains(t, byType, "B")
	require.Contains(t, byType, "C")

	assert.Equal(t, "http://a", byType["B"].Props["url"])
	assert.Equal(t, "arn:b", byType["C"].Props["arn"])

	// Every node was applied exactly once, however many rounds it took to
	// materialize the whole chain out of placeholder state.
	applied := prv.Applied()
	assert.ElementsMatch(t, []string{byType["A"].ID, byType["B"].ID, byType["C"].ID}, applied)
}

func TestLoop_Siblings(t *testing.T) {
	leaf := func(constructType string) element.Component {
		return func(element.Props) element.Element {
			render.UseInstance(constructType, map[string]any{"name": constructType})
			return element.CreateElement(element.Fragment, nil)
		}
	}
	elX := element.CreateElement(leaf("X"), element.Props{})
	elX.Key = "x"
	elY := element.CreateElement(leaf("Y"), element.Props{})
	elY.Key = "y"
	elZ := element.CreateElement(leaf("Z"), element.Props{})
	elZ.Key = "z"

	root := element.CreateElement(element.Fragment, element.Props{}, elX, elY, elZ)
	prv := echoprovider.New()

	result, err := Loop(context.Background(), logr.Discard(), prv, root, nil, Options{})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 3)

	require.Len(t, result.ChangeSet.ParallelBatches, 1)
	assert.Len(t, result.ChangeSet.ParallelBatches[0], 3)
	assert.Len(t, prv.Applied(), 3)
}

func TestLoop_Idempotent(t *testing.T) {
	root := element.CreateElement(chainComponentA, element.Props{})
	prv := chainProvider()

	first, err := Loop(context.Background(), logr.Discard(), prv, root, nil, Options{})
	require.NoError(t, err)
	require.Len(t, first.Nodes, 3)
	appliedAfterFirst := len(prv.Applied())

	second, err := Loop(context.Background(), logr.Discard(), prv, root, first.Nodes, Options{})
	require.NoError(t, err)
	require.Len(t, second.Nodes, 3)

	assert.Len(t, prv.Applied(), appliedAfterFirst, "a converge run over an unchanged tree must not call Apply again")
	assert.Empty(t, second.ChangeSet.Creates)
	assert.Empty(t, second.ChangeSet.Updates)
	assert.Len(t, second.ChangeSet.Noops, 3)
}

// keepComponent/dropComponent are top-level (not closures) so the same
// function identity, and hence the same rendered fiber path and node id,
// is produced whether or not the sibling is present in the tree.
func keepComponent(element.Props) element.Element {
	render.UseInstance("Keep", map[string]any{})
	return element.CreateElement(element.Fragment, nil)
}

func dropComponent(element.Props) element.Element {
	render.UseInstance("Drop", map[string]any{})
	return element.CreateElement(element.Fragment, nil)
}

func TestLoop_DestroysAbsentNodes(t *testing.T) {
	both := element.CreateElement(element.Fragment, element.Props{},
		element.CreateElement(keepComponent, element.Props{}),
		element.CreateElement(dropComponent, element.Props{}),
	)

	prv := echoprovider.New()
	first, err := Loop(context.Background(), logr.Discard(), prv, both, nil, Options{})
	require.NoError(t, err)
	require.Len(t, first.Nodes, 2)

	onlyKeep := element.CreateElement(keepComponent, element.Props{})

	second, err := Loop(context.Background(), logr.Discard(), prv, onlyKeep, first.Nodes, Options{})
	require.NoError(t, err)
	require.Len(t, second.Nodes, 1)
	assert.Equal(t, "Keep", second.Nodes[0].ConstructType)

	require.Len(t, prv.Destroyed(), 1)

	var dropID string
	for _, n := range first.Nodes {
		if n.ConstructType == "Drop" {
			dropID = n.ID
		}
	}
	assert.Equal(t, dropID, prv.Destroyed()[0])
}

func TestLoop_NonConvergingTreeReturnsConvergenceError(t *testing.T) {
	// renderCount changes the node's props on every single render pass
	// (its id, derived only from path, stays fixed), so the pass is never
	// structurally identical to the last and the loop can never settle.
	renderCount := 0
	oscillator := func(element.Props) element.Element {
		renderCount++
		render.UseInstance("Flaky", map[string]any{"n": renderCount})
		return element.CreateElement(element.Fragment, nil)
	}

	prv := echoprovider.New()
	root := element.CreateElement(oscillator, element.Props{})
	_, err := Loop(context.Background(), logr.Discard(), prv, root, nil, Options{MaxIterations: 2})

	require.Error(t, err)
	var convErr *ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 2, convErr.Iterations)
}
