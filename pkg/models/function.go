package models

// ModuleFunction is the pseudo-function that owns top-level statements of a
// file. Raise and handler sites outside any def still belong to exactly one
// FunctionNode.
const ModuleFunction = "<module>"

// CallSite is one call expression inside a function body, recorded before
// resolution. Callee holds the name as written; Receiver is the simple
// receiver identifier for attribute calls ("" for plain name calls).
type CallSite struct {
	Location Location
	Callee   string
	Receiver string
	ArgCount int
}

// FunctionNode is a named callable unit of the analyzed program.
type FunctionNode struct {
	Qualified string // module[.Class].name
	Name      string
	Module    string
	Class     string // owning class, "" for free functions
	Location  Location
	Abstract  bool // body is a stub that only raises "not implemented"

	RaiseSites   []RaiseSite
	HandlerSites []HandlerSite
	CallSites    []CallSite

	// LocalConstructions maps local variable names to the class they were
	// constructed from, for receiver-type call resolution.
	LocalConstructions map[string]string
}

// ClassDecl is a raw class-declaration fact, input to hierarchy resolution.
type ClassDecl struct {
	Name     string
	Module   string
	Bases    []string // ordered declared base-type names
	Location Location
}

// ImportRecord is one imported binding visible in a file.
type ImportRecord struct {
	Module     string // source module path as written
	Name       string // imported symbol, "" for whole-module imports
	Alias      string // local binding name
	IsRelative bool
	IsWildcard bool
}

// FileFacts is everything extracted from a single source file. Facts are
// collected per file independently and merged once, so merge order cannot
// affect the result.
type FileFacts struct {
	Path      string
	Module    string
	Functions []*FunctionNode
	Classes   []ClassDecl
	Imports   []ImportRecord
}
