package dsl_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/dsl"
	"github.com/sbl8/attrgraph/graph"
)

func TestCompileConstAndMapChain(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())

	src := `
# simple chain: a -> double -> inc
const a 7
map b double <- a
map c inc <- b
`
	res, err := dsl.Compile(g, src)
	require.NoError(t, err)

	c, ok := res.Attributes["c"]
	require.True(t, ok, "expected attribute %q to be declared", "c")

	typeID := res.Subgraph.Store.NodeAt(c).TypeID
	ptr, _, status := g.GetValue(c, 0, typeID)
	require.Equal(t, core.StatusChanged, status)
	require.Equal(t, int32(15), *(*int32)(ptr), "expected c = (7*2)+1")
}

func TestCompileMap2Add(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())

	src := `
const a 3
const b 4
map2 sum add <- a b
`
	res, err := dsl.Compile(g, src)
	require.NoError(t, err)

	sum := res.Attributes["sum"]
	typeID := res.Subgraph.Store.NodeAt(sum).TypeID
	ptr, _, _ := g.GetValue(sum, 0, typeID)
	require.Equal(t, int32(7), *(*int32)(ptr))
}

func TestCompileIterateExpandsBlock(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())

	src := `
iterate i 0 2 {
  const n%i %i
  map d%i double <- n%i
}
`
	res, err := dsl.Compile(g, src)
	require.NoError(t, err)

	for i, want := range []int32{0, 2, 4} {
		name := "d" + string(rune('0'+i))
		a, ok := res.Attributes[name]
		require.True(t, ok, "expected attribute %q to be declared", name)

		typeID := res.Subgraph.Store.NodeAt(a).TypeID
		ptr, _, _ := g.GetValue(a, 0, typeID)
		require.Equal(t, want, *(*int32)(ptr), name)
	}
}

func TestCompileRejectsUnknownOp(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())

	_, err := dsl.Compile(g, "const a 1\nmap b nonsense <- a\n")
	require.Error(t, err)
}
