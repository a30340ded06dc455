package render

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/instance"
)

func leafComponent(props element.Props) element.Element {
	name, _ := props["name"].(string)
	UseInstance("Server", map[string]any{"name": name})
	return element.CreateElement(element.Fragment, nil)
}

func TestRenderer_Render(t *testing.T) {
	t.Run("produces a flat instance node list", func(t *testing.T) {
		root := element.CreateElement(leafComponent, element.Props{"name": "web"})
		rd := NewRenderer(logr.Discard())
		defer rd.Dispose()

		nodes := rd.Render(root, nil)

		require.Len(t, nodes, 1)
		assert.Equal(t, "Server", nodes[0].ConstructType)
		assert.Equal(t, "web", nodes[0].Props["name"])
	})

	t.Run("fragments contribute no path segment of their own", func(t *testing.T) {
		root := element.CreateElement(element.Fragment, element.Props{},
			element.CreateElement(leafComponent, element.Props{"name": "web"}))
		rd := NewRenderer(logr.Discard())
		defer rd.Dispose()

		nodes := rd.Render(root, nil)

		require.Len(t, nodes, 1)
		assert.Equal(t, []string{"leaf-component", "server"}, nodes[0].Path)
	})

	t.Run("nested host tags chain instance ancestry by path", func(t *testing.T) {
		child := func(props element.Props) element.Element {
			UseInstance("PolicyAttachment", map[string]any{"for": props["for"]})
			return element.CreateElement(element.Fragment, nil)
		}
		parent := func(props element.Props) element.Element {
			UseInstance("Server", map[string]any{"name": "web"})
			return element.CreateElement("Server", element.Props{},
				element.CreateElement(child, element.Props{"for": "web"}))
		}

		root := element.CreateElement(parent, element.Props{})
		rd := NewRenderer(logr.Discard())
		defer rd.Dispose()

		nodes := rd.Render(root, nil)
		require.Len(t, nodes, 2)

		var server, policy *instance.Node
		for _, n := range nodes {
			switch n.ConstructType {
			case "Server":
				server = n
			case "PolicyAttachment":
				policy = n
			}
		}
		require.NotNil(t, server)
		require.NotNil(t, policy)

		assert.Len(t, server.Path, len(policy.Path)-2)
		for i, seg := range server.Path {
			assert.Equal(t, seg, policy.Path[i])
		}
	})

	t.Run("duplicate unkeyed sibling construct panics", func(t *testing.T) {
		root := element.CreateElement(element.Fragment, element.Props{},
			element.CreateElement(leafComponent, element.Props{"name": "a"}),
			element.CreateElement(leafComponent, element.Props{"name": "b"}),
		)
		rd := NewRenderer(logr.Discard())
		defer rd.Dispose()

		assert.Panics(t, func() { rd.Render(root, nil) })
	})

	t.Run("a user key disambiguates repeated sibling constructs", func(t *testing.T) {
		a := element.CreateElement(leafComponent, element.Props{"name": "a"})
		a.Key = "a"
		b := element.CreateElement(leafComponent, element.Props{"name": "b"})
		b.Key = "b"

		root := element.CreateElement(element.Fragment, element.Props{}, a, b)
		rd := NewRenderer(logr.Discard())
		defer rd.Dispose()

		nodes := rd.Render(root, nil)
		require.Len(t, nodes, 2)
	})

	t.Run("an undefined prop withholds the instance and marks a placeholder", func(t *testing.T) {
		var fiberRef *Fiber
		comp := func(props element.Props) element.Element {
			UseInstance("Widget", map[string]any{"input": props["input"]})
			return element.CreateElement(element.Fragment, nil)
		}

		root := element.CreateElement(comp, element.Props{"input": instance.Undefined})
		rd := NewRenderer(logr.Discard())
		defer rd.Dispose()

		nodes := rd.Render(root, nil)
		fiberRef = rd.root

		assert.Empty(t, nodes)
		require.NotNil(t, fiberRef)
		assert.True(t, fiberRef.Placeholder())
	})

	t.Run("hydrates a node's outputs across independent render passes", func(t *testing.T) {
		root := element.CreateElement(leafComponent, element.Props{"name": "web"})

		rd1 := NewRenderer(logr.Discard())
		nodes1 := rd1.Render(root, nil)
		require.Len(t, nodes1, 1)
		nodes1[0].SetOutputs(map[string]any{"url": "http://x"})
		rd1.Dispose()

		rd2 := NewRenderer(logr.Discard())
		defer rd2.Dispose()
		nodes2 := rd2.Render(root, nodes1)

		require.Len(t, nodes2, 1)
		assert.Equal(t, "http://x", nodes2[0].Output("url"))
	})
}

func TestUseInstance_OutsideRenderPanics(t *testing.T) {
	assert.Panics(t, func() {
		UseInstance("Server", map[string]any{})
	})
}

func TestKebabCase(t *testing.T) {
	assert.Equal(t, "server", kebabCase("Server"))
	assert.Equal(t, "policy-attachment", kebabCase("PolicyAttachment"))
	assert.Equal(t, "s3-bucket", kebabCase("S3Bucket"))
}
