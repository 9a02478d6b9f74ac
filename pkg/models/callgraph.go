package models

// Confidence is the certainty tier of a resolved call edge.
type Confidence int

const (
	ResolvedStatic Confidence = iota
	ResolvedTypeInference
	UnresolvedDynamic
)

func (c Confidence) String() string {
	switch c {
	case ResolvedStatic:
		return "resolved_static"
	case ResolvedTypeInference:
		return "resolved_type_inference"
	case UnresolvedDynamic:
		return "unresolved_dynamic"
	default:
		return "unknown"
	}
}

// CallEdge connects a caller FunctionNode to a callee FunctionNode.
// UnresolvedDynamic edges are retained but flagged; the detector treats them
// as possible rather than confirmed reachability.
type CallEdge struct {
	Caller     string
	Callee     string
	Confidence Confidence
	Line       int // line of the call site inside the caller
}

// UnresolvedCall annotates a call that produced no edge at any tier. The
// detector uses these to flag results as possibly incomplete rather than
// asserting absence of reachability.
type UnresolvedCall struct {
	Caller   string
	Callee   string
	Location Location
}
