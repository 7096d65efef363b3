// Package workspace caches debuggee source documents by filename,
// fetching on miss through the protocol client. See spec §4.E.
package workspace

import "sync"

// SourceFetcher is the subset of the protocol client a Workspace needs.
// Satisfied by *dbgp.Client; declared here to avoid an import cycle
// and to keep the cache testable against a fake.
type SourceFetcher interface {
	Source(filename string) (string, error)
}

// Document is one cached source file.
type Document struct {
	Filename string
	Text     string
}

// Workspace is an in-memory cache of Documents keyed by filename. The
// session resets it from its event loop while snapshot builds open
// documents from a background goroutine, so the mutex guards the map.
type Workspace struct {
	mu     sync.Mutex
	client SourceFetcher
	docs   map[string]*Document
}

// New constructs an empty Workspace backed by client.
func New(client SourceFetcher) *Workspace {
	return &Workspace{
		client: client,
		docs:   make(map[string]*Document),
	}
}

// Open returns the cached Document for filename, fetching it through
// the protocol client on a cache miss.
func (w *Workspace) Open(filename string) (*Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if doc, ok := w.docs[filename]; ok {
		return doc, nil
	}

	text, err := w.client.Source(filename)
	if err != nil {
		return nil, err
	}

	doc := &Document{Filename: filename, Text: text}
	w.docs[filename] = doc
	return doc, nil
}

// Reset clears every cached document.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs = make(map[string]*Document)
}

// Len reports how many documents are currently cached.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.docs)
}
