package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dbgpfront/internal/analyzer"
	"github.com/marmos91/dbgpfront/internal/dbgp/xml"
	"github.com/marmos91/dbgpfront/internal/workspace"
)

type fakeClient struct {
	stack    *xml.StackGet
	contexts map[int]*xml.ContextGet
	eval     *xml.Eval
}

func (f *fakeClient) StackGet(depth int) (*xml.StackGet, error) { return f.stack, nil }
func (f *fakeClient) ContextGet(depth int) (*xml.ContextGet, error) {
	return f.contexts[depth], nil
}
func (f *fakeClient) Eval(expression string, depth int) (*xml.Eval, error) { return f.eval, nil }

type fakeFetcher struct{ text string }

func (f *fakeFetcher) Source(filename string) (string, error) { return f.text, nil }

func newHarness(t *testing.T, maxContextFetch int) (*Builder, *fakeClient) {
	t.Helper()
	client := &fakeClient{
		stack: &xml.StackGet{Entries: []xml.StackEntry{
			{Level: 0, Filename: "file:///a.php", Line: 2},
			{Level: 1, Filename: "file:///a.php", Line: 5},
		}},
		contexts: map[int]*xml.ContextGet{
			0: {Properties: []xml.Property{{Name: "$name", Value: "world"}}},
			1: {Properties: []xml.Property{{Name: "$name", Value: "outer"}}},
		},
	}
	ws := workspace.New(&fakeFetcher{text: "<?php\nfunction greet($name) {\n    echo $name;\n}\n"})
	registry := analyzer.NewRegistry()
	return New(client, ws, registry, maxContextFetch), client
}

func TestBuildFetchesAllFramesWithinBound(t *testing.T) {
	builder, _ := newHarness(t, 4)

	entry, err := builder.Build()
	require.NoError(t, err)
	require.Len(t, entry.Frames, 2)
	assert.NotNil(t, entry.Frames[0].Properties)
	assert.NotNil(t, entry.Frames[1].Properties)
}

func TestBuildLeavesDeepFramesUnfetched(t *testing.T) {
	builder, _ := newHarness(t, 1)

	entry, err := builder.Build()
	require.NoError(t, err)
	assert.NotNil(t, entry.Frames[0].Properties)
	assert.Nil(t, entry.Frames[1].Properties)
}

func TestBackfillFrameFetchesOnDemand(t *testing.T) {
	builder, _ := newHarness(t, 1)

	entry, err := builder.Build()
	require.NoError(t, err)
	require.Nil(t, entry.Frames[1].Properties)

	require.NoError(t, builder.BackfillFrame(entry, 1))
	assert.NotNil(t, entry.Frames[1].Properties)
}

func TestBuildWithPendingEvalAttachesResult(t *testing.T) {
	builder, client := newHarness(t, 4)
	client.eval = &xml.Eval{Properties: []xml.Property{{Name: "", Value: "42"}}}

	entry, err := builder.Build(WithPendingEval("1 + 41"))
	require.NoError(t, err)
	require.NotNil(t, entry.Eval)
	assert.Equal(t, "42", entry.Eval.Properties[0].Value)
}

func TestResetClearsCachedAnalyses(t *testing.T) {
	builder, _ := newHarness(t, 4)
	_, err := builder.Build()
	require.NoError(t, err)
	assert.NotEmpty(t, builder.analyses)

	builder.Reset()
	assert.Empty(t, builder.analyses)
}
