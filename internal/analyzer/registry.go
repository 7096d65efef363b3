package analyzer

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
)

// languageEntry binds a file extension to the grammar used to parse
// it. The analyzer's contract is language-agnostic (spec §4.D); new
// extensions register their grammar here rather than in Analyze.
type languageEntry struct {
	name string
	lang *sitter.Language
}

// Registry maps file extensions to tree-sitter grammars.
type Registry struct {
	mu   sync.RWMutex
	byExt map[string]languageEntry
}

// NewRegistry returns a Registry pre-populated with the grammars this
// repository ships: PHP, matching Xdebug's debuggee language. Callers
// may register additional extensions with Register.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]languageEntry)}
	r.Register(".php", "php", php.GetLanguage())
	r.Register(".phtml", "php", php.GetLanguage())
	return r
}

// Register associates ext (including the leading dot) with a grammar.
func (r *Registry) Register(ext, name string, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[ext] = languageEntry{name: name, lang: lang}
}

// Analyze looks up filename's extension and parses src with the
// registered grammar. An unregistered extension yields an
// *AnalysisError rather than a panic.
func (r *Registry) Analyze(filename string, src []byte) (*Analysis, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	r.mu.RLock()
	entry, ok := r.byExt[ext]
	r.mu.RUnlock()

	if !ok {
		return nil, &AnalysisError{Language: "unknown", Filename: filename, Err: errUnregisteredExtension(ext)}
	}
	return Analyze(entry.lang, entry.name, filename, src)
}

type errUnregisteredExtension string

func (e errUnregisteredExtension) Error() string {
	return "no grammar registered for extension " + string(e)
}
