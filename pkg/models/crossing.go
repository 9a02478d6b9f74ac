package models

// SiteRef is the serialized reference to a raise site inside a crossing.
type SiteRef struct {
	File              string     `json:"file"`
	Line              int        `json:"line"`
	EnclosingFunction string     `json:"enclosing_function"`
	OriginKind        OriginKind `json:"origin_kind"`
	Message           string     `json:"message,omitempty"`
	Context           string     `json:"context,omitempty"`
}

// HandlerRef is the serialized reference to the handler catch-arm a crossing
// was computed for.
type HandlerRef struct {
	File              string      `json:"file"`
	Line              int         `json:"line"`
	EnclosingFunction string      `json:"enclosing_function"`
	Disposition       Disposition `json:"disposition"`
}

// Crossing is the computed output unit: one handler catch-arm plus the raise
// sites that reach it, with the information-loss scores derived from the
// confirmed set.
type Crossing struct {
	Handler          HandlerRef `json:"handler"`
	CaughtType       string     `json:"caught_type"`
	ConfirmedSites   []SiteRef  `json:"confirmed_sites"`
	PossibleSites    []SiteRef  `json:"possible_sites,omitempty"`
	DistinctMeanings int        `json:"distinct_meanings"`
	EntropyBits      float64    `json:"entropy_bits"`
	BitsLost         float64    `json:"bits_lost"`
	CollapseFraction float64    `json:"collapse_fraction"`
	RiskLevel        RiskLevel  `json:"risk_level"`
}
