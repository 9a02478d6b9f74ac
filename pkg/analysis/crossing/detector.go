package crossing

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/fridayops/crossing/pkg/callgraph"
	"github.com/fridayops/crossing/pkg/hierarchy"
	"github.com/fridayops/crossing/pkg/models"
)

// Finding pairs a computed crossing with the handler clause it was computed
// for. Branches is the number of distinct dispositions among the clauses
// sharing the guarded region; the scorer credits each distinguishable
// disposition path against the loss.
type Finding struct {
	Crossing models.Crossing
	Handler  models.HandlerSite
	Branches int
}

// Detector walks every handler catch-arm and computes which raise sites can
// reach it through the call graph within the configured depth.
type Detector struct {
	logger   *slog.Logger
	graph    *callgraph.Graph
	hier     *hierarchy.Hierarchy
	maxDepth int
}

// NewDetector creates a crossing detector over a built call graph.
func NewDetector(logger *slog.Logger, graph *callgraph.Graph, hier *hierarchy.Hierarchy, maxDepth int) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger, graph: graph, hier: hier, maxDepth: maxDepth}
}

// siteEntry tracks one reached raise site and whether any edge on its path
// was dynamic dispatch.
type siteEntry struct {
	site     models.RaiseSite
	possible bool
}

// Detect computes a finding for every catch-arm at least one raise site
// reaches. Output order is stable across runs.
func (d *Detector) Detect() []Finding {
	var findings []Finding
	for _, fn := range d.graph.Functions() {
		for _, h := range fn.HandlerSites {
			for _, caught := range h.CaughtTypes {
				confirmed, possible := d.collect(fn, h, caught)
				if len(confirmed) == 0 && len(possible) == 0 {
					continue
				}
				findings = append(findings, Finding{
					Crossing: models.Crossing{
						Handler: models.HandlerRef{
							File:              h.Location.File,
							Line:              h.Location.Line,
							EnclosingFunction: h.EnclosingFunction,
							Disposition:       h.Disposition,
						},
						CaughtType:     caught,
						ConfirmedSites: confirmed,
						PossibleSites:  possible,
					},
					Handler:  h,
					Branches: distinctDispositions(fn, h.GuardedRegion),
				})
			}
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i].Crossing.Handler, findings[j].Crossing.Handler
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return findings[i].Crossing.CaughtType < findings[j].Crossing.CaughtType
	})
	d.logger.Debug("crossing detection complete", "findings", len(findings))
	return findings
}

// distinctDispositions counts the distinct dispositions among the handler
// clauses of one try statement, identified by their shared guarded region.
// Two clauses doing the same thing with what they catch are one code path.
func distinctDispositions(fn *models.FunctionNode, region models.Span) int {
	seen := make(map[models.Disposition]bool)
	for _, h := range fn.HandlerSites {
		if h.GuardedRegion == region {
			seen[h.Disposition] = true
		}
	}
	return len(seen)
}

// collect gathers the raise sites reaching one catch-arm: raises placed
// directly inside the guarded region, plus raises escaping functions called
// from inside it, followed transitively up to the depth bound.
func (d *Detector) collect(fn *models.FunctionNode, h models.HandlerSite, caught string) (confirmed, possible []models.SiteRef) {
	acc := make(map[string]siteEntry)

	for _, r := range fn.RaiseSites {
		if !h.GuardedRegion.Contains(r.Location.Line) {
			continue
		}
		if !d.hier.IsSubtype(r.TypeName, caught) {
			continue
		}
		if d.absorbedInside(fn, h, r.Location.Line, r.TypeName) {
			continue
		}
		accumulate(acc, siteEntry{site: r})
	}

	for _, edge := range d.graph.CallsFrom(fn.Qualified) {
		if !h.GuardedRegion.Contains(edge.Line) {
			continue
		}
		viaDynamic := edge.Confidence == models.UnresolvedDynamic
		visited := map[string]bool{fn.Qualified: true}
		for _, entry := range d.escaping(edge.Callee, d.maxDepth-1, visited) {
			if !d.hier.IsSubtype(entry.site.TypeName, caught) {
				continue
			}
			if d.absorbedInside(fn, h, edge.Line, entry.site.TypeName) {
				continue
			}
			entry.possible = entry.possible || viaDynamic
			accumulate(acc, entry)
		}
	}

	return splitSites(acc)
}

// escaping returns the raise sites that propagate out of a function: its own
// unabsorbed raises, plus whatever escapes its callees and is not absorbed at
// the call site. depth counts remaining call edges to follow.
func (d *Detector) escaping(qualified string, depth int, visited map[string]bool) []siteEntry {
	if visited[qualified] {
		return nil
	}
	fn := d.graph.Function(qualified)
	if fn == nil {
		return nil
	}
	visited[qualified] = true
	defer delete(visited, qualified)

	var out []siteEntry
	for _, r := range fn.RaiseSites {
		if d.absorbed(fn, r.Location.Line, r.TypeName) {
			continue
		}
		out = append(out, siteEntry{site: r})
	}
	if depth <= 0 {
		return out
	}
	for _, edge := range d.graph.CallsFrom(qualified) {
		viaDynamic := edge.Confidence == models.UnresolvedDynamic
		for _, entry := range d.escaping(edge.Callee, depth-1, visited) {
			if d.absorbed(fn, edge.Line, entry.site.TypeName) {
				continue
			}
			entry.possible = entry.possible || viaDynamic
			out = append(out, entry)
		}
	}
	return out
}

// absorbed reports whether a raise of the given type at the given line is
// caught and stopped by any handler of the function. Re-raising clauses let
// the error continue, so they never absorb.
func (d *Detector) absorbed(fn *models.FunctionNode, line int, typeName string) bool {
	for _, h := range fn.HandlerSites {
		if !h.GuardedRegion.Contains(line) || h.Disposition.Propagates() {
			continue
		}
		for _, c := range h.CaughtTypes {
			if d.hier.IsSubtype(typeName, c) {
				return true
			}
		}
	}
	return false
}

// absorbedInside is the same check restricted to handlers strictly nested
// inside the outer clause's guarded region. Clauses sharing the outer span
// are sibling arms of the same try, not absorbers.
func (d *Detector) absorbedInside(fn *models.FunctionNode, outer models.HandlerSite, line int, typeName string) bool {
	for _, h := range fn.HandlerSites {
		if h.GuardedRegion == outer.GuardedRegion {
			continue
		}
		if h.GuardedRegion.StartLine < outer.GuardedRegion.StartLine ||
			h.GuardedRegion.EndLine > outer.GuardedRegion.EndLine {
			continue
		}
		if !h.GuardedRegion.Contains(line) || h.Disposition.Propagates() {
			continue
		}
		for _, c := range h.CaughtTypes {
			if d.hier.IsSubtype(typeName, c) {
				return true
			}
		}
	}
	return false
}

func accumulate(acc map[string]siteEntry, entry siteEntry) {
	key := siteKey(entry.site)
	if existing, ok := acc[key]; ok {
		// A confirmed path wins over a dynamic-dispatch one.
		if existing.possible && !entry.possible {
			acc[key] = entry
		}
		return
	}
	acc[key] = entry
}

func siteKey(r models.RaiseSite) string {
	return r.Location.File + ":" + strconv.Itoa(r.Location.Line) + ":" + strconv.Itoa(r.Location.Column) + ":" + r.TypeName + ":" + r.Origin.String()
}

func splitSites(acc map[string]siteEntry) (confirmed, possible []models.SiteRef) {
	for _, entry := range acc {
		ref := models.SiteRef{
			File:              entry.site.Location.File,
			Line:              entry.site.Location.Line,
			EnclosingFunction: entry.site.EnclosingFunction,
			OriginKind:        entry.site.Origin,
			Message:           entry.site.Message,
			Context:           entry.site.Context,
		}
		if entry.possible {
			possible = append(possible, ref)
		} else {
			confirmed = append(confirmed, ref)
		}
	}
	sortRefs(confirmed)
	sortRefs(possible)
	return confirmed, possible
}

func sortRefs(refs []models.SiteRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		if refs[i].Line != refs[j].Line {
			return refs[i].Line < refs[j].Line
		}
		return refs[i].OriginKind < refs[j].OriginKind
	})
}
