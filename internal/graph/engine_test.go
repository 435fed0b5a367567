package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendNode(name string, trail *[]string) NodeFunc {
	return func(_ context.Context, s *State) error {
		*trail = append(*trail, name)
		return nil
	}
}

func TestGraphRunsStaticAndConditionalEdges(t *testing.T) {
	var trail []string
	g := New("a").
		AddNode("a", appendNode("a", &trail)).
		AddNode("b", func(_ context.Context, s *State) error {
			trail = append(trail, "b")
			s.RetryCount++
			return nil
		}).
		AddNode("c", appendNode("c", &trail)).
		AddEdge("a", "b").
		AddConditionalEdges("b", func(s *State) string {
			if s.RetryCount < 3 {
				return "b"
			}
			return "c"
		}, "b", "c").
		AddEdge("c", End)
	require.NoError(t, g.Validate())

	require.NoError(t, g.Run(context.Background(), NewState("t1")))
	assert.Equal(t, []string{"a", "b", "b", "b", "c"}, trail)
}

func TestGraphValidate(t *testing.T) {
	g := New("missing").
		AddNode("a", func(context.Context, *State) error { return nil }).
		AddNode("b", func(context.Context, *State) error { return nil }).
		AddEdge("a", "nowhere")

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `entry node "missing" is not defined`)
	assert.Contains(t, err.Error(), `node "b" has no outgoing edge`)
	assert.Contains(t, err.Error(), "edge a -> nowhere references an unknown node")
}

func TestGraphStepLimit(t *testing.T) {
	g := New("loop", WithMaxSteps(5)).
		AddNode("loop", func(context.Context, *State) error { return nil }).
		AddEdge("loop", "loop")

	err := g.Run(context.Background(), NewState("t"))
	assert.ErrorIs(t, err, ErrMaxSteps)
}

func TestGraphRejectsUndeclaredRoute(t *testing.T) {
	g := New("a").
		AddNode("a", func(context.Context, *State) error { return nil }).
		AddConditionalEdges("a", func(*State) string { return "elsewhere" }, End)

	err := g.Run(context.Background(), NewState("t"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared target "elsewhere"`)
}

func TestGraphNodeErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	g := New("a").
		AddNode("a", func(context.Context, *State) error { return boom }).
		AddNode("b", func(context.Context, *State) error { ran = true; return nil }).
		AddEdge("a", "b").
		AddEdge("b", End)

	err := g.Run(context.Background(), NewState("t"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestGraphStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := New("a").
		AddNode("a", func(context.Context, *State) error { return nil }).
		AddEdge("a", End)

	assert.ErrorIs(t, g.Run(ctx, NewState("t")), context.Canceled)
}

func TestMemoryCheckpointerRecordsAndEvicts(t *testing.T) {
	cp := NewMemoryCheckpointer(2)
	g := New("a", WithCheckpointer(cp)).
		AddNode("a", func(_ context.Context, s *State) error { s.Error = "first"; return nil }).
		AddNode("b", func(_ context.Context, s *State) error { s.Error = "second"; return nil }).
		AddEdge("a", "b").
		AddEdge("b", End)

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, g.Run(context.Background(), NewState(id)))
	}

	assert.Empty(t, cp.History("t1"))
	h := cp.History("t3")
	require.Len(t, h, 2)
	assert.Equal(t, "a", h[0].Node)
	assert.Equal(t, "first", h[0].State.Error)
	assert.Equal(t, 1, h[1].Step)

	latest, ok := cp.Latest("t2")
	require.True(t, ok)
	assert.Equal(t, "b", latest.Node)
	_, ok = cp.Latest("t1")
	assert.False(t, ok)
}
