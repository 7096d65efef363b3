// Package snapshot builds one history entry from a Continuation Break
// reply: the call stack, per-frame source and properties, and variable
// annotations joined against the analyzer's output. See spec §4.I.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/marmos91/dbgpfront/internal/analyzer"
	"github.com/marmos91/dbgpfront/internal/dbgp/xml"
	"github.com/marmos91/dbgpfront/internal/logger"
	"github.com/marmos91/dbgpfront/internal/workspace"
)

// ProtocolClient is the subset of *dbgp.Client a Builder needs.
type ProtocolClient interface {
	StackGet(depth int) (*xml.StackGet, error)
	ContextGet(depth int) (*xml.ContextGet, error)
	Eval(expression string, depth int) (*xml.Eval, error)
}

// Frame is one call-stack level, joined with its source context and
// (when fetched) its property set.
type Frame struct {
	Level      int
	Filename   string
	Line       int
	Properties []xml.Property // nil until fetched
	fetched    bool
}

// Annotation pairs an analyzer-discovered variable with the matching
// runtime property, keyed by source column.
type Annotation struct {
	Column   int
	Variable analyzer.VariableReference
	Property xml.Property
}

// Entry is one pushed history record.
type Entry struct {
	Frames      []Frame
	Annotations map[string]map[int]Annotation // "filename:line" -> column -> annotation
	Eval        *xml.Eval
}

// Builder assembles Entry values on every Break.
type Builder struct {
	client               ProtocolClient
	workspace            *workspace.Workspace
	registry             *analyzer.Registry
	maxContextFetch      int
	analyses             map[string]*analyzer.Analysis // filename -> cached analysis
}

// New constructs a Builder. maxContextFetch bounds how many innermost
// frames are eagerly context_get'd; deeper frames are back-filled
// lazily by the session on cursor movement (spec §4.I/§4.J).
func New(client ProtocolClient, ws *workspace.Workspace, registry *analyzer.Registry, maxContextFetch int) *Builder {
	return &Builder{
		client:          client,
		workspace:       ws,
		registry:        registry,
		maxContextFetch: maxContextFetch,
		analyses:        make(map[string]*analyzer.Analysis),
	}
}

// buildOptions collects the settings Option values apply to a single
// Build call; a pending eval is issued once and attached to that Entry.
type buildOptions struct {
	selectedFrame  int
	pendingEval    string
	hasPendingEval bool
}

// Option configures a single Build call.
type Option func(*buildOptions)

// WithSelectedFrame changes which frame's variables are annotated;
// defaults to the innermost frame (0).
func WithSelectedFrame(level int) Option {
	return func(o *buildOptions) { o.selectedFrame = level }
}

// WithPendingEval attaches an eval result for expression at the
// selected frame's depth.
func WithPendingEval(expression string) Option {
	return func(o *buildOptions) { o.pendingEval, o.hasPendingEval = expression, true }
}

// Build fetches the stack, per-frame context (bounded by
// maxContextFetch), source, and analyzer output, then joins them into
// an Entry ready to push into history.
func (b *Builder) Build(opts ...Option) (*Entry, error) {
	options := buildOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	stack, err := b.client.StackGet(0)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Annotations: make(map[string]map[int]Annotation)}

	for k, s := range stack.Entries {
		frame := Frame{Level: s.Level, Filename: s.Filename, Line: s.Line}

		if _, err := b.workspace.Open(s.Filename); err != nil {
			return nil, err
		}

		if err := b.ensureAnalyzed(s.Filename); err != nil {
			// An analysis failure only leaves this file without annotations.
			var ae *analyzer.AnalysisError
			if !errors.As(err, &ae) {
				return nil, err
			}
			logger.Debug("source analysis failed", logger.Filename(s.Filename), logger.Err(err))
		}

		if k < b.maxContextFetch {
			ctx, err := b.client.ContextGet(s.Level)
			if err != nil {
				return nil, err
			}
			frame.Properties = ctx.Properties
			frame.fetched = true
		}

		entry.Frames = append(entry.Frames, frame)
	}

	selected := options.selectedFrame
	if selected < len(entry.Frames) && entry.Frames[selected].fetched {
		b.annotate(entry, entry.Frames[selected])
	}

	if options.hasPendingEval {
		ev, err := b.client.Eval(options.pendingEval, selected)
		if err != nil {
			return nil, err
		}
		entry.Eval = ev
	}

	return entry, nil
}

// BackfillFrame fetches and attaches context_get for a frame that
// wasn't eagerly fetched during Build (spec §4.J "lazily back-fill").
func (b *Builder) BackfillFrame(entry *Entry, level int) error {
	for i := range entry.Frames {
		if entry.Frames[i].Level != level {
			continue
		}
		if entry.Frames[i].fetched {
			return nil
		}
		ctx, err := b.client.ContextGet(level)
		if err != nil {
			return err
		}
		entry.Frames[i].Properties = ctx.Properties
		entry.Frames[i].fetched = true
		b.annotate(entry, entry.Frames[i])
		return nil
	}
	return nil
}

func (b *Builder) ensureAnalyzed(filename string) error {
	if _, ok := b.analyses[filename]; ok {
		return nil
	}
	doc, err := b.workspace.Open(filename)
	if err != nil {
		return err
	}
	analysis, err := b.registry.Analyze(filename, []byte(doc.Text))
	if err != nil {
		return err
	}
	b.analyses[filename] = analysis
	return nil
}

// annotate joins frame.Properties against the analyzer's variable
// references on frame.Line by name, keyed by column (spec §4.I step 4).
func (b *Builder) annotate(entry *Entry, frame Frame) {
	analysis := b.analyses[frame.Filename]
	if analysis == nil {
		return
	}
	// DBGp stack line numbers are 1-based; tree-sitter rows are 0-based.
	refs := analysis.References(frame.Line - 1)
	if len(refs) == 0 {
		return
	}

	byName := make(map[string]xml.Property, len(frame.Properties))
	for _, p := range frame.Properties {
		byName[p.Name] = p
	}

	key := fmt.Sprintf("%s:%d", frame.Filename, frame.Line)
	columns := entry.Annotations[key]
	if columns == nil {
		columns = make(map[int]Annotation)
		entry.Annotations[key] = columns
	}

	for col, ref := range refs {
		prop, ok := byName[ref.Name]
		if !ok {
			continue
		}
		columns[col] = Annotation{Column: col, Variable: ref, Property: prop}
	}
}

// Reset drops cached analyses (called on workspace reset).
func (b *Builder) Reset() {
	b.analyses = make(map[string]*analyzer.Analysis)
}
