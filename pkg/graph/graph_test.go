package graph_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = domain.Func(func() bool { return true })

func TestDefine_Chain(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "aaa", ok))
	require.NoError(t, g.Define("aaa", "bbb", ok))
	require.NoError(t, g.Define("bbb", "ccc", ok))

	assert.Equal(t, []string{"", "aaa", "bbb", "ccc"}, g.States())
	assert.Len(t, g.Transitions(), 3)

	terminal, found := g.Terminal()
	assert.True(t, found)
	assert.Equal(t, "ccc", terminal)
	assert.NoError(t, g.Validate())
}

func TestDefine_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target string
		action domain.Action
		reason error
	}{
		{"empty target", "aaa", "", ok, domain.ErrEmptyState},
		{"blank target", "aaa", "   ", ok, domain.ErrEmptyState},
		{"self", "aaa", "aaa", ok, domain.ErrSelfTransition},
		{"self case", "aaa", "AAA", ok, domain.ErrSelfTransition},
		{"self whitespace", " aaa", "aAa\t", ok, domain.ErrSelfTransition},
		{"nil action", "aaa", "bbb", nil, domain.ErrNilAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.New()
			err := g.Define(tt.source, tt.target, tt.action)
			assert.ErrorIs(t, err, domain.ErrDefinition)
			assert.ErrorIs(t, err, tt.reason)
			assert.Zero(t, g.Len(), "rejected definitions must not touch the graph")
		})
	}
}

func TestDefine_OnlyOneTransitionPerState(t *testing.T) {
	for _, source := range []string{"aaa", "AAA", "  aaa  "} {
		t.Run(source, func(t *testing.T) {
			g := graph.New()
			require.NoError(t, g.Define("aaa", "bbb", ok))
			err := g.Define(source, "ccc", ok)
			assert.ErrorIs(t, err, domain.ErrDefinition)
			assert.ErrorIs(t, err, domain.ErrDuplicateTransition)
		})
	}
}

func TestDefine_TargetDefinedLater(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("bbb", "ccc", ok))
	require.NoError(t, g.Define("", "aaa", ok))
	require.NoError(t, g.Define("AAA", "BBB", ok))

	step, found := g.Lookup("aaa")
	require.True(t, found)
	assert.Equal(t, domain.StepDefined, step.Kind())
	assert.NoError(t, g.Validate())
}

func TestValidate_CannotContainTwoHeads(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "aaa", ok))
	require.NoError(t, g.Define("aaa", "bbb", ok))
	require.NoError(t, g.Define("ccc", "ddd", ok))

	err := g.Validate()
	assert.ErrorIs(t, err, domain.ErrGraph)
	assert.ErrorIs(t, err, domain.ErrMultipleTerminalStates)
	assert.Contains(t, err.Error(), "multiple terminal states")

	var graphErr *domain.GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, []string{"bbb", "ddd"}, graphErr.States)
}

func TestValidate_CannotContainLoops(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "aaa", ok))
	require.NoError(t, g.Define("aaa", "bbb", ok))
	require.NoError(t, g.Define("bbb", "ccc", ok))
	require.NoError(t, g.Define("ccc", "aaa", ok))

	err := g.Validate()
	assert.ErrorIs(t, err, domain.ErrGraph)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Contains(t, err.Error(), "cycle detected")
}

func TestValidate_LoopBesideChain(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "end", ok))
	require.NoError(t, g.Define("x", "y", ok))
	require.NoError(t, g.Define("y", "x", ok))

	assert.ErrorIs(t, g.Validate(), domain.ErrCycleDetected)
}

// Two links may lead into one state. Only the number of ends and loops are
// checked, so the merge validates and both sources reach the same terminal.
func TestValidate_MergingChains(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "xxx", ok))
	require.NoError(t, g.Define("yyy", "xxx", ok))

	require.NoError(t, g.Validate())
	terminal, found := g.Terminal()
	assert.True(t, found)
	assert.Equal(t, "xxx", terminal)

	for _, from := range []string{"", "yyy"} {
		path, err := g.Path(from)
		require.NoError(t, err)
		require.Len(t, path, 1)
		assert.Equal(t, "xxx", path[0].Target)
	}
}

func TestValidate_Empty(t *testing.T) {
	err := graph.New().Validate()
	assert.ErrorIs(t, err, domain.ErrNoTerminalState)
}

func TestValidate_DoesNotMutate(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "aaa", ok))
	before := g.States()
	require.NoError(t, g.Validate())
	require.NoError(t, g.Validate())
	assert.Equal(t, before, g.States())
}

// Any chain of uniquely named states validates, whatever the definition order,
// and its terminal state is the last link.
func TestValidate_ChainInAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for n := 1; n <= 12; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			states := make([]string, n+1)
			for i := 1; i <= n; i++ {
				states[i] = fmt.Sprintf("s%02d", i)
			}

			for round := 0; round < 5; round++ {
				g := graph.New()
				for _, i := range rng.Perm(n) {
					require.NoError(t, g.Define(states[i], states[i+1], ok))
				}
				require.NoError(t, g.Validate())

				terminal, found := g.Terminal()
				assert.True(t, found)
				assert.Equal(t, states[n], terminal)

				path, err := g.Path("")
				require.NoError(t, err)
				assert.Len(t, path, n)
			}
		})
	}
}

func TestPath(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Define("", "a", ok))
	require.NoError(t, g.Define("a", "b", ok))
	require.NoError(t, g.Define("b", "c", ok))

	path, err := g.Path("A")
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, "b", path[0].Target)
	assert.Equal(t, "c", path[1].Target)

	path, err = g.Path("c")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = g.Path("zzz")
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}
