package workspace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int
	text  string
	err   error
}

func (f *fakeFetcher) Source(filename string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestOpenFetchesOnMiss(t *testing.T) {
	fetcher := &fakeFetcher{text: "<?php\n"}
	ws := New(fetcher)

	doc, err := ws.Open("file:///a.php")
	require.NoError(t, err)
	assert.Equal(t, "<?php\n", doc.Text)
	assert.Equal(t, 1, fetcher.calls)
}

func TestOpenCachesAfterFirstFetch(t *testing.T) {
	fetcher := &fakeFetcher{text: "<?php\n"}
	ws := New(fetcher)

	_, err := ws.Open("file:///a.php")
	require.NoError(t, err)
	_, err = ws.Open("file:///a.php")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, ws.Len())
}

func TestOpenPropagatesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	ws := New(fetcher)

	_, err := ws.Open("file:///a.php")
	require.Error(t, err)
	assert.Equal(t, 0, ws.Len())
}

func TestResetClearsCache(t *testing.T) {
	fetcher := &fakeFetcher{text: "<?php\n"}
	ws := New(fetcher)

	_, err := ws.Open("file:///a.php")
	require.NoError(t, err)
	require.Equal(t, 1, ws.Len())

	ws.Reset()
	assert.Equal(t, 0, ws.Len())

	_, err = ws.Open("file:///a.php")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}
