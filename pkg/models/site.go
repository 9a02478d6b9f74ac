package models

// Location identifies a source position in an analyzed file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// OriginKind classifies how a raise site produces its error.
type OriginKind int

const (
	// OriginExplicit is a literal raise statement.
	OriginExplicit OriginKind = iota
	// OriginKeyLookup is a required-key subscript load on a mapping.
	OriginKeyLookup
	// OriginIteration is an unconditional advance of a sequence cursor.
	OriginIteration
	// OriginAttribute is a required-attribute access without a default.
	OriginAttribute
	// OriginConversion is a value conversion that rejects malformed input.
	OriginConversion
)

func (o OriginKind) String() string {
	switch o {
	case OriginExplicit:
		return "explicit"
	case OriginKeyLookup:
		return "key_lookup"
	case OriginIteration:
		return "iteration"
	case OriginAttribute:
		return "attribute"
	case OriginConversion:
		return "conversion"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the origin kind as its string form.
func (o OriginKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

// IsImplicit reports whether the site exists without a raise statement.
func (o OriginKind) IsImplicit() bool {
	return o != OriginExplicit
}

// RaiseSite is one error-origination point. Immutable once extracted.
type RaiseSite struct {
	Location          Location
	EnclosingFunction string // qualified identifier of the owning FunctionNode
	TypeName          string // declared error type name, as written
	Origin            OriginKind
	Message           string // literal message template, empty when non-literal
	Context           string // nearest enclosing control-flow condition, "in <function>" when none
}

// Disposition classifies what a handling clause does with a caught error.
type Disposition int

const (
	DispositionSuppress Disposition = iota
	DispositionReturnDefault
	DispositionAssignDefault
	DispositionReraise
	DispositionTransformReraise
)

func (d Disposition) String() string {
	switch d {
	case DispositionSuppress:
		return "suppress"
	case DispositionReturnDefault:
		return "return_default"
	case DispositionAssignDefault:
		return "assign_default"
	case DispositionReraise:
		return "re_raise"
	case DispositionTransformReraise:
		return "transform_reraise"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the disposition as its string form.
func (d Disposition) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Propagates reports whether the disposition lets the error continue outward.
// Absorbing dispositions terminate a reachability branch during detection.
func (d Disposition) Propagates() bool {
	return d == DispositionReraise || d == DispositionTransformReraise
}

// Span is an inclusive line range inside one file.
type Span struct {
	StartLine int
	EndLine   int
}

// Contains reports whether the given line falls inside the span.
func (s Span) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// HandlerSite is one error-handling clause. A clause listing N caught types is
// modeled as N catch-arms sharing one guarded region; CaughtTypes preserves
// the order the source tries them in.
type HandlerSite struct {
	Location          Location
	EnclosingFunction string
	CaughtTypes       []string
	GuardedRegion     Span // the try body this clause wraps
	Disposition       Disposition
}
