package hierarchy

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/fridayops/crossing/pkg/models"
)

// NodeKind distinguishes where a type node came from.
type NodeKind int

const (
	KindBuiltin NodeKind = iota
	KindUser
	KindExternal // declared base not found anywhere in the model
)

// TypeNode is the canonical identity of one exception type plus its direct
// supertypes. Multiple inheritance makes this a DAG, not a tree.
type TypeNode struct {
	Name    string
	Kind    NodeKind
	Parents []string
	Module  string // defining module for user types
}

// Hierarchy is the resolved supertype graph with a precomputed ancestor
// closure, so subtype queries are O(1) lookups instead of linear walks.
// Built once per run and read-only afterwards.
type Hierarchy struct {
	nodes     map[string]*TypeNode
	ancestors map[string]map[string]bool
	warnings  []models.Warning
}

// Resolve builds the hierarchy from the built-in table plus the raw
// class-declaration facts of all files. Declared bases that resolve nowhere
// become external pseudo-nodes with a recorded warning; third-party bases
// outside the analyzed source are common and not an error.
func Resolve(logger *slog.Logger, classes []models.ClassDecl) *Hierarchy {
	h := &Hierarchy{
		nodes:     make(map[string]*TypeNode),
		ancestors: make(map[string]map[string]bool),
	}

	for name, parents := range builtinParents {
		h.nodes[name] = &TypeNode{Name: name, Kind: KindBuiltin, Parents: parents}
	}

	// First pass: register every declared class so bases can resolve across
	// files regardless of declaration order.
	sorted := append([]models.ClassDecl(nil), classes...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Module != sorted[j].Module {
			return sorted[i].Module < sorted[j].Module
		}
		return sorted[i].Name < sorted[j].Name
	})
	for _, c := range sorted {
		if _, ok := h.nodes[c.Name]; ok {
			continue // built-in shadow or duplicate; first declaration wins
		}
		h.nodes[c.Name] = &TypeNode{
			Name:    c.Name,
			Kind:    KindUser,
			Parents: normalizeBases(c.Bases),
			Module:  c.Module,
		}
	}

	// Second pass: resolve bases, creating external pseudo-nodes for the rest.
	for _, c := range sorted {
		node := h.nodes[c.Name]
		if node.Kind != KindUser || node.Module != c.Module {
			continue
		}
		for _, base := range node.Parents {
			if _, ok := h.nodes[base]; ok {
				continue
			}
			h.nodes[base] = &TypeNode{Name: base, Kind: KindExternal}
			h.warnings = append(h.warnings, models.Warning{
				Kind:    "unresolved_base",
				Subject: c.Name,
				Detail:  "base " + base + " not found in analyzed source",
			})
			logger.Debug("external base class", "class", c.Name, "base", base)
		}
	}

	for name := range h.nodes {
		h.closure(name, map[string]bool{})
	}

	return h
}

// normalizeBases strips attribute qualifiers so 'exceptions.AppError' links
// to a class declared as AppError, and drops the non-inheriting 'object'.
func normalizeBases(bases []string) []string {
	var out []string
	for _, b := range bases {
		if idx := strings.LastIndex(b, "."); idx >= 0 {
			b = b[idx+1:]
		}
		if b == "" || b == "object" {
			continue
		}
		out = append(out, b)
	}
	return out
}

// closure computes the transitive ancestor set for one node. The visiting set
// guards against declared inheritance cycles, which are invalid input but
// must not hang the resolver.
func (h *Hierarchy) closure(name string, visiting map[string]bool) map[string]bool {
	if anc, ok := h.ancestors[name]; ok {
		return anc
	}
	if visiting[name] {
		return map[string]bool{}
	}
	visiting[name] = true

	anc := map[string]bool{}
	node := h.nodes[name]
	if node != nil {
		for _, p := range node.Parents {
			anc[p] = true
			for a := range h.closure(p, visiting) {
				anc[a] = true
			}
		}
	}
	delete(visiting, name)
	h.ancestors[name] = anc
	return anc
}

// Warnings returns the unresolved-base warnings recorded during resolution.
func (h *Hierarchy) Warnings() []models.Warning {
	return h.warnings
}

// Lookup returns the node for a type name, nil when unknown.
func (h *Hierarchy) Lookup(name string) *TypeNode {
	return h.nodes[simpleName(name)]
}

// IsSubtype reports whether S is T or a transitive subtype of T.
func (h *Hierarchy) IsSubtype(s, t string) bool {
	s, t = simpleName(s), simpleName(t)
	if s == t {
		return true
	}
	anc, ok := h.ancestors[s]
	return ok && anc[t]
}

// IsException reports whether a type participates in the exception hierarchy:
// it descends from BaseException, or it reaches an external base whose name
// follows the exception naming convention.
func (h *Hierarchy) IsException(name string) bool {
	name = simpleName(name)
	node, ok := h.nodes[name]
	if !ok {
		return looksExceptional(name)
	}
	if node.Kind == KindBuiltin {
		return true
	}
	if h.IsSubtype(name, "BaseException") {
		return true
	}
	for anc := range h.ancestors[name] {
		if n := h.nodes[anc]; n != nil && n.Kind == KindExternal && looksExceptional(anc) {
			return true
		}
	}
	if node.Kind == KindExternal {
		return looksExceptional(name)
	}
	return false
}

func looksExceptional(name string) bool {
	return strings.HasSuffix(name, "Error") ||
		strings.HasSuffix(name, "Exception") ||
		strings.HasSuffix(name, "Warning")
}

// simpleName strips any dotted qualifier from a type name as written at a
// raise or except site.
func simpleName(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
