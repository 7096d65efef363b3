// Package xml decodes DBGp response payloads into typed Go values.
// See spec §4.B / §4.B.1.
package xml

// Init carries the debuggee's initial handshake.
type Init struct {
	FileURI string
}

// ContinuationStatus is the status of a continuation reply
// (run/step_into/step_over/step_out).
type ContinuationStatus int

const (
	// StatusBreak means the debuggee paused and is ready for queries.
	StatusBreak ContinuationStatus = iota
	// StatusStopping means the debuggee is shutting down.
	StatusStopping
	// StatusUnknown covers any other status string; Raw carries it verbatim.
	// Per spec §9 Open Question, Unknown is non-terminal.
	StatusUnknown
)

// Continuation is the body of a run/step_into/step_over/step_out reply.
type Continuation struct {
	Status ContinuationStatus
	Raw    string // the raw status attribute value
	Reason string
}

// StackEntry is one frame of a stack_get reply, innermost first.
type StackEntry struct {
	Level    int
	Filename string
	Line     int
}

// StackGet is the body of a stack_get reply.
type StackGet struct {
	Entries []StackEntry
}

// Source is the decoded body of a source reply: base64 CDATA already
// decoded to UTF-8 text.
type Source struct {
	Text string
}

// PropertyType enumerates the DBGp property type vocabulary (spec §3).
type PropertyType int

const (
	TypeBool PropertyType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeNull
	TypeArray
	TypeHash
	TypeObject
	TypeResource
	TypeUndefined
)

var propertyTypeNames = map[string]PropertyType{
	"bool":     TypeBool,
	"boolean":  TypeBool,
	"int":      TypeInt,
	"float":    TypeFloat,
	"string":   TypeString,
	"null":     TypeNull,
	"array":    TypeArray,
	"hash":     TypeHash,
	"object":   TypeObject,
	"resource": TypeResource,
}

// ParsePropertyType maps a DBGp `type` attribute to PropertyType; unknown
// values become TypeUndefined (spec §4.B.1).
func ParsePropertyType(s string) PropertyType {
	if t, ok := propertyTypeNames[s]; ok {
		return t
	}
	return TypeUndefined
}

// Property is a runtime value description (spec §3). Optional numeric
// attributes use pointers so an absent attribute is distinguishable from
// an explicit zero.
type Property struct {
	Name      string
	Fullname  string
	Type      PropertyType
	Classname string // only meaningful when Type == TypeObject
	Page      *uint64
	PageSize  *uint64
	Size      *uint64
	Facet     string
	Key       string
	Address   string
	Encoding  string
	Value     string
	Children  []Property
}

// ContextGet is the body of a context_get reply: a flat list of
// top-level properties, each possibly carrying nested children.
type ContextGet struct {
	Properties []Property
}

// EvalError carries a failed eval's code and message.
type EvalError struct {
	Code    int
	Message string
}

func (e *EvalError) Error() string {
	return e.Message
}

// Eval is the body of an eval reply: either one or more properties, or
// an error.
type Eval struct {
	Properties []Property
	Err        *EvalError
}

// Unknown is the body of a reply whose command the decoder does not
// give typed treatment to (e.g. feature_set acknowledgments).
type Unknown struct {
	Command string
}

// Response is a decoded `<response .../>` message. Exactly one of the
// Body fields is populated, selected by the command that produced it.
type Response struct {
	TransactionID int
	Command       string

	Continuation *Continuation
	StackGet     *StackGet
	Source       *Source
	ContextGet   *ContextGet
	Eval         *Eval
	Unknown      *Unknown
}
