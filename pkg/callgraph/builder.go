package callgraph

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/fridayops/crossing/pkg/models"
)

// Builder resolves the call sites recorded in file facts into a call graph.
// Resolution is purely static: same-module names, import bindings, and
// receiver inference from self or locally constructed instances. Anything
// past that is dynamic dispatch and stays unresolved.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a new call graph builder
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Graph is the resolved call graph. Edge lists are sorted so repeated runs
// over the same input produce identical output.
type Graph struct {
	functions  map[string]*models.FunctionNode
	outgoing   map[string][]models.CallEdge
	edges      []models.CallEdge
	unresolved []models.UnresolvedCall
}

// Function looks up a function node by qualified name.
func (g *Graph) Function(qualified string) *models.FunctionNode {
	return g.functions[qualified]
}

// Functions returns all function nodes sorted by qualified name.
func (g *Graph) Functions() []*models.FunctionNode {
	out := make([]*models.FunctionNode, 0, len(g.functions))
	for _, fn := range g.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Qualified < out[j].Qualified })
	return out
}

// CallsFrom returns the outgoing edges of a function, sorted by call line.
func (g *Graph) CallsFrom(qualified string) []models.CallEdge {
	return g.outgoing[qualified]
}

// Edges returns every edge in the graph.
func (g *Graph) Edges() []models.CallEdge {
	return g.edges
}

// Unresolved returns the call sites that could not be resolved to any
// function in the analyzed source.
func (g *Graph) Unresolved() []models.UnresolvedCall {
	return g.unresolved
}

// moduleScope carries the per-module name bindings used during resolution.
type moduleScope struct {
	// functionBindings maps a local name to the qualified function it was
	// imported as, e.g. 'load' -> 'app.config.load' for 'from app.config import load'.
	functionBindings map[string]string
	// moduleBindings maps a local name to a module path, covering both
	// 'import app.config' (binding 'app') and 'import app.config as cfg'.
	moduleBindings map[string]string
}

// Build constructs the call graph from extracted file facts.
func (b *Builder) Build(files []models.FileFacts) *Graph {
	g := &Graph{
		functions: make(map[string]*models.FunctionNode),
		outgoing:  make(map[string][]models.CallEdge),
	}

	moduleFuncs := make(map[string]map[string]string) // module -> name -> qualified
	classMethods := make(map[string]map[string]string) // class -> method -> qualified
	methodsByName := make(map[string][]string)         // method -> qualified candidates
	classInit := make(map[string]string)               // class -> __init__ qualified

	for fi := range files {
		f := &files[fi]
		for _, fn := range f.Functions {
			g.functions[fn.Qualified] = fn
			if fn.Class == "" {
				if moduleFuncs[fn.Module] == nil {
					moduleFuncs[fn.Module] = make(map[string]string)
				}
				moduleFuncs[fn.Module][fn.Name] = fn.Qualified
				continue
			}
			if classMethods[fn.Class] == nil {
				classMethods[fn.Class] = make(map[string]string)
			}
			classMethods[fn.Class][fn.Name] = fn.Qualified
			methodsByName[fn.Name] = append(methodsByName[fn.Name], fn.Qualified)
			if fn.Name == "__init__" {
				classInit[fn.Class] = fn.Qualified
			}
		}
	}
	for name := range methodsByName {
		sort.Strings(methodsByName[name])
	}

	scopes := make(map[string]*moduleScope)
	for fi := range files {
		f := &files[fi]
		scopes[f.Module] = buildScope(f, moduleFuncs)
	}

	for fi := range files {
		f := &files[fi]
		scope := scopes[f.Module]
		for _, fn := range f.Functions {
			for _, cs := range fn.CallSites {
				b.resolveCall(g, fn, cs, scope, moduleFuncs, classMethods, methodsByName, classInit)
			}
		}
	}

	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].Caller != g.edges[j].Caller {
			return g.edges[i].Caller < g.edges[j].Caller
		}
		if g.edges[i].Line != g.edges[j].Line {
			return g.edges[i].Line < g.edges[j].Line
		}
		return g.edges[i].Callee < g.edges[j].Callee
	})
	for caller := range g.outgoing {
		edges := g.outgoing[caller]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Line != edges[j].Line {
				return edges[i].Line < edges[j].Line
			}
			return edges[i].Callee < edges[j].Callee
		})
	}
	sort.Slice(g.unresolved, func(i, j int) bool {
		if g.unresolved[i].Caller != g.unresolved[j].Caller {
			return g.unresolved[i].Caller < g.unresolved[j].Caller
		}
		if g.unresolved[i].Location.Line != g.unresolved[j].Location.Line {
			return g.unresolved[i].Location.Line < g.unresolved[j].Location.Line
		}
		return g.unresolved[i].Callee < g.unresolved[j].Callee
	})

	b.logger.Debug("call graph built",
		"functions", len(g.functions),
		"edges", len(g.edges),
		"unresolved", len(g.unresolved))
	return g
}

// buildScope turns a file's import records into callable-name bindings.
func buildScope(f *models.FileFacts, moduleFuncs map[string]map[string]string) *moduleScope {
	scope := &moduleScope{
		functionBindings: make(map[string]string),
		moduleBindings:   make(map[string]string),
	}
	for _, imp := range f.Imports {
		switch {
		case imp.IsWildcard:
			// 'from m import *' binds every module-level function in m.
			for name, qualified := range moduleFuncs[imp.Module] {
				scope.functionBindings[name] = qualified
			}
		case imp.Name != "":
			// 'from m import f' or 'from m import f as g'.
			local := imp.Name
			if imp.Alias != "" {
				local = imp.Alias
			}
			scope.functionBindings[local] = imp.Module + "." + imp.Name
		default:
			// 'import m' binds the first dotted segment, 'import m as a'
			// binds the alias to the whole path.
			if imp.Alias != "" {
				scope.moduleBindings[imp.Alias] = imp.Module
			} else {
				first := imp.Module
				if idx := strings.Index(first, "."); idx >= 0 {
					first = first[:idx]
				}
				scope.moduleBindings[first] = first
			}
		}
	}
	return scope
}

func (b *Builder) resolveCall(
	g *Graph,
	caller *models.FunctionNode,
	cs models.CallSite,
	scope *moduleScope,
	moduleFuncs map[string]map[string]string,
	classMethods map[string]map[string]string,
	methodsByName map[string][]string,
	classInit map[string]string,
) {
	if cs.Receiver == "" {
		b.resolvePlainCall(g, caller, cs, scope, moduleFuncs, classInit)
		return
	}
	b.resolveMethodCall(g, caller, cs, scope, moduleFuncs, classMethods, methodsByName)
}

func (b *Builder) resolvePlainCall(
	g *Graph,
	caller *models.FunctionNode,
	cs models.CallSite,
	scope *moduleScope,
	moduleFuncs map[string]map[string]string,
	classInit map[string]string,
) {
	// Same-module function first, shadowing any import binding.
	if qualified, ok := moduleFuncs[caller.Module][cs.Callee]; ok {
		g.addEdge(caller.Qualified, qualified, models.ResolvedStatic, cs.Location.Line)
		return
	}

	// From-import binding.
	if target, ok := scope.functionBindings[cs.Callee]; ok {
		if _, known := g.functions[target]; known {
			g.addEdge(caller.Qualified, target, models.ResolvedStatic, cs.Location.Line)
			return
		}
		// Imported from a module outside the scan root.
		g.addUnresolved(caller.Qualified, cs)
		return
	}

	// Constructor call: edge to __init__ when the class defines one.
	if qualified, ok := classInit[cs.Callee]; ok {
		g.addEdge(caller.Qualified, qualified, models.ResolvedStatic, cs.Location.Line)
		return
	}

	if isBuiltinCallable(cs.Callee) {
		return
	}
	g.addUnresolved(caller.Qualified, cs)
}

func (b *Builder) resolveMethodCall(
	g *Graph,
	caller *models.FunctionNode,
	cs models.CallSite,
	scope *moduleScope,
	moduleFuncs map[string]map[string]string,
	classMethods map[string]map[string]string,
	methodsByName map[string][]string,
) {
	// self.method() inside a class.
	if cs.Receiver == "self" && caller.Class != "" {
		if qualified, ok := classMethods[caller.Class][cs.Callee]; ok {
			g.addEdge(caller.Qualified, qualified, models.ResolvedTypeInference, cs.Location.Line)
			return
		}
	}

	// Dotted receiver naming a submodule: a.b.func() after 'import a.b', or
	// ab.c.func() after 'import a.b as ab'. No match falls through to the
	// dynamic tiers below.
	if idx := strings.Index(cs.Receiver, "."); idx >= 0 {
		first, rest := cs.Receiver[:idx], cs.Receiver[idx+1:]
		if modPath, ok := scope.moduleBindings[first]; ok {
			candidates := []string{modPath + "." + rest}
			if modPath == first || strings.HasPrefix(modPath, first+".") {
				// Plain import: the receiver is the module path as written.
				candidates = append(candidates, cs.Receiver)
			}
			for _, full := range candidates {
				if qualified, found := moduleFuncs[full][cs.Callee]; found {
					g.addEdge(caller.Qualified, qualified, models.ResolvedStatic, cs.Location.Line)
					return
				}
			}
		}
	}

	// Module-qualified call through an import binding: m.func() or alias.func().
	if modPath, ok := scope.moduleBindings[cs.Receiver]; ok {
		if qualified, found := moduleFuncs[modPath][cs.Callee]; found {
			g.addEdge(caller.Qualified, qualified, models.ResolvedStatic, cs.Location.Line)
			return
		}
		// Dotted module imports bind the first segment, so probe the full
		// paths the receiver could denote.
		for mod, funcs := range moduleFuncs {
			if mod == modPath || strings.HasPrefix(mod, modPath+".") {
				if qualified, found := funcs[cs.Callee]; found {
					g.addEdge(caller.Qualified, qualified, models.ResolvedStatic, cs.Location.Line)
					return
				}
			}
		}
		g.addUnresolved(caller.Qualified, cs)
		return
	}

	// Receiver assigned from a constructor in the same function body.
	if class, ok := caller.LocalConstructions[cs.Receiver]; ok {
		if qualified, found := classMethods[class][cs.Callee]; found {
			g.addEdge(caller.Qualified, qualified, models.ResolvedTypeInference, cs.Location.Line)
			return
		}
	}

	// Dynamic dispatch. Keep candidate edges for every class method sharing
	// the name so downstream reachability can report possible flows, and
	// record the call as unresolved either way.
	if candidates, ok := methodsByName[cs.Callee]; ok {
		for _, qualified := range candidates {
			g.addEdge(caller.Qualified, qualified, models.UnresolvedDynamic, cs.Location.Line)
		}
		g.addUnresolved(caller.Qualified, cs)
		return
	}

	if isBuiltinMethod(cs.Callee) {
		return
	}
	g.addUnresolved(caller.Qualified, cs)
}

func (g *Graph) addEdge(caller, callee string, conf models.Confidence, line int) {
	edge := models.CallEdge{Caller: caller, Callee: callee, Confidence: conf, Line: line}
	g.edges = append(g.edges, edge)
	g.outgoing[caller] = append(g.outgoing[caller], edge)
}

func (g *Graph) addUnresolved(caller string, cs models.CallSite) {
	g.unresolved = append(g.unresolved, models.UnresolvedCall{
		Caller:   caller,
		Callee:   cs.Callee,
		Location: cs.Location,
	})
}

// isBuiltinCallable filters the built-in functions and exception constructors
// that would otherwise flood the unresolved list with noise.
func isBuiltinCallable(name string) bool {
	if pythonBuiltins[name] {
		return true
	}
	// Exception constructors like ValueError("bad input").
	return strings.HasSuffix(name, "Error") ||
		strings.HasSuffix(name, "Exception") ||
		strings.HasSuffix(name, "Warning") ||
		name == "StopIteration" || name == "KeyboardInterrupt" ||
		name == "SystemExit" || name == "GeneratorExit"
}

// isBuiltinMethod filters methods defined on built-in container and string
// types. The list covers the common surface, not the full CPython API.
func isBuiltinMethod(name string) bool {
	return builtinMethods[name]
}

var pythonBuiltins = map[string]bool{
	"abs": true, "all": true, "any": true, "ascii": true, "bin": true,
	"bool": true, "bytearray": true, "bytes": true, "callable": true,
	"chr": true, "classmethod": true, "compile": true, "complex": true,
	"delattr": true, "dict": true, "dir": true, "divmod": true,
	"enumerate": true, "eval": true, "exec": true, "filter": true,
	"float": true, "format": true, "frozenset": true, "getattr": true,
	"globals": true, "hasattr": true, "hash": true, "hex": true,
	"id": true, "input": true, "int": true, "isinstance": true,
	"issubclass": true, "iter": true, "len": true, "list": true,
	"locals": true, "map": true, "max": true, "memoryview": true,
	"min": true, "next": true, "object": true, "oct": true,
	"open": true, "ord": true, "pow": true, "print": true,
	"property": true, "range": true, "repr": true, "reversed": true,
	"round": true, "set": true, "setattr": true, "slice": true,
	"sorted": true, "staticmethod": true, "str": true, "sum": true,
	"super": true, "tuple": true, "type": true, "vars": true,
	"zip": true,
}

var builtinMethods = map[string]bool{
	"append": true, "extend": true, "insert": true, "remove": true,
	"pop": true, "clear": true, "sort": true, "reverse": true,
	"copy": true, "count": true, "index": true, "keys": true, "values": true,
	"items": true, "get": true, "setdefault": true, "update": true,
	"add": true, "discard": true, "union": true, "intersection": true,
	"difference": true, "join": true, "split": true, "rsplit": true,
	"strip": true, "lstrip": true, "rstrip": true, "lower": true,
	"upper": true, "title": true, "capitalize": true, "startswith": true,
	"endswith": true, "find": true, "rfind": true, "replace": true,
	"format": true, "format_map": true, "encode": true, "decode": true,
	"isdigit": true, "isalpha": true, "isalnum": true, "isspace": true,
	"read": true, "readline": true, "readlines": true, "write": true,
	"writelines": true, "close": true, "flush": true, "seek": true,
}
