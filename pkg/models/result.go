package models

// ParseFailure records one file that could not be read or parsed. The file is
// excluded from the model and the run continues.
type ParseFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Warning records a non-fatal resolution issue that degrades confidence or
// completeness without aborting the run.
type Warning struct {
	Kind    string `json:"kind"` // "unresolved_base", "unresolved_call"
	Subject string `json:"subject"`
	Detail  string `json:"detail,omitempty"`
}

// Summary aggregates information loss across all reported crossings.
type Summary struct {
	TotalCrossings       int     `json:"total_crossings"`
	HighRisk             int     `json:"high_risk"`
	ElevatedRisk         int     `json:"elevated_risk"`
	MediumRisk           int     `json:"medium_risk"`
	LowRisk              int     `json:"low_risk"`
	TotalInformationLoss float64 `json:"total_information_loss_bits"`
	MeanCollapseRatio    float64 `json:"mean_collapse_ratio"`
}

// AnalyzeResult is the core's public result, consumed by report renderers.
// Given identical input source it is bit-for-bit reproducible.
type AnalyzeResult struct {
	Root          string         `json:"root"`
	FilesScanned  int            `json:"files_scanned"`
	ParseFailures []ParseFailure `json:"parse_failures,omitempty"`
	Warnings      []Warning      `json:"warnings,omitempty"`
	RaiseSites    int            `json:"raise_sites"`
	HandlerSites  int            `json:"handler_sites"`
	Crossings     []Crossing     `json:"crossings"`
	Summary       Summary        `json:"summary"`
}
