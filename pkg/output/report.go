package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fridayops/crossing/pkg/models"
	"github.com/fridayops/crossing/pkg/version"
)

// benchmark holds crossing statistics from a previously scanned project, used
// to give a new scan context.
type benchmark struct {
	Files     int
	Crossings int
	Elevated  int
	Density   float64
}

// Benchmark data from accumulated scans, updated as new projects are scanned.
var benchmarks = map[string]benchmark{
	"flask":      {24, 6, 2, 0.25},
	"requests":   {18, 5, 2, 0.28},
	"rich":       {100, 5, 1, 0.05},
	"celery":     {161, 12, 3, 0.07},
	"httpx":      {23, 3, 0, 0.13},
	"fastapi":    {47, 0, 0, 0.0},
	"hypothesis": {103, 29, 7, 0.28},
	"pytest":     {71, 9, 9, 0.13},
	"click":      {17, 11, 4, 0.65},
	"tqdm":       {31, 7, 3, 0.23},
	"uvicorn":    {40, 7, 3, 0.18},
	"invoke":     {47, 12, 3, 0.26},
	"scrapy":     {113, 23, 8, 0.20},
	"colorama":   {7, 1, 0, 0.14},
}

// ReportOptions configures the markdown report renderer.
type ReportOptions struct {
	ProjectName string
	Repo        string
	Version     string
	Now         func() time.Time // defaults to time.Now
}

// WriteReport renders an analysis result as a markdown audit report with an
// executive summary, per-finding analysis, benchmark context, and methodology.
func WriteReport(w io.Writer, result *models.AnalyzeResult, opts ReportOptions) error {
	if opts.ProjectName == "" {
		opts.ProjectName = result.Root
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var b strings.Builder
	crossings := sortedByRisk(result.Crossings)
	significant := filterSignificant(crossings)
	sum := result.Summary
	density := 0.0
	if result.FilesScanned > 0 {
		density = float64(sum.TotalCrossings) / float64(result.FilesScanned)
	}

	writeHeader(&b, result, opts, now().UTC())
	writeExecutiveSummary(&b, result, opts.ProjectName, significant, density)
	writeScanSummary(&b, result)
	writeFindings(&b, result, significant)
	writeBenchmarks(&b, opts.ProjectName, result, density)
	writeMethodology(&b)

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func sortedByRisk(crossings []models.Crossing) []models.Crossing {
	out := append([]models.Crossing(nil), crossings...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RiskLevel > out[j].RiskLevel
	})
	return out
}

func filterSignificant(crossings []models.Crossing) []models.Crossing {
	var out []models.Crossing
	for _, c := range crossings {
		if c.RiskLevel >= models.RiskMedium {
			out = append(out, c)
		}
	}
	return out
}

func writeHeader(b *strings.Builder, result *models.AnalyzeResult, opts ReportOptions, now time.Time) {
	fmt.Fprintf(b, "# Crossing Audit Report: %s\n\n", opts.ProjectName)
	if opts.Repo != "" {
		fmt.Fprintf(b, "**Project:** %s (%s)\n", opts.ProjectName, opts.Repo)
	} else {
		fmt.Fprintf(b, "**Project:** %s\n", opts.ProjectName)
	}
	if opts.Version != "" {
		fmt.Fprintf(b, "**Version:** %s\n", opts.Version)
	}
	fmt.Fprintf(b, "**Scanned:** %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(b, "**Tool:** Crossing Semantic Scanner %s\n\n---\n\n", version.GetVersion())
}

func writeExecutiveSummary(b *strings.Builder, result *models.AnalyzeResult, name string, significant []models.Crossing, density float64) {
	b.WriteString("## Executive Summary\n\n")
	sum := result.Summary

	if sum.TotalCrossings == 0 {
		fmt.Fprintf(b,
			"%s has **zero semantic boundary crossings**. For a %d-file codebase "+
				"with %d raise sites and %d handlers, this is excellent: all exception "+
				"handling is semantically unambiguous.\n",
			name, result.FilesScanned, result.RaiseSites, result.HandlerSites)
	} else {
		var breakdown []string
		if sum.HighRisk > 0 {
			breakdown = append(breakdown, fmt.Sprintf("**%d high-risk**", sum.HighRisk))
		}
		if sum.ElevatedRisk > 0 {
			breakdown = append(breakdown, fmt.Sprintf("**%d elevated-risk**", sum.ElevatedRisk))
		}
		if len(breakdown) == 0 && sum.MediumRisk > 0 {
			breakdown = append(breakdown, fmt.Sprintf("**%d medium-risk**", sum.MediumRisk))
		}
		findingsDesc := "no significant"
		if len(breakdown) > 0 {
			findingsDesc = strings.Join(breakdown, ", ")
		}
		word := "crossings"
		if sum.TotalCrossings == 1 {
			word = "crossing"
		}
		fmt.Fprintf(b,
			"%s has **%d semantic boundary %s**, including %s findings. For a "+
				"%d-file codebase with %d raise sites and %d handlers, this gives a "+
				"crossing density of %.2f per file.\n",
			name, sum.TotalCrossings, word, findingsDesc,
			result.FilesScanned, result.RaiseSites, result.HandlerSites, density)

		if files := affectedFilesAll(significant); len(files) > 0 && len(files) <= 3 {
			quoted := make([]string, len(files))
			for i, f := range files {
				quoted[i] = "`" + f + "`"
			}
			fmt.Fprintf(b, "\nThe significant findings are concentrated in %s.\n",
				strings.Join(quoted, ", "))
		}
		fmt.Fprintf(b, "\n**Risk Level:** %s.\n", overallRisk(sum))
	}
	b.WriteString("\n---\n\n")
}

// overallRisk folds the per-crossing counts into one project-level label.
func overallRisk(sum models.Summary) string {
	switch {
	case sum.HighRisk >= 3:
		return "High"
	case sum.HighRisk >= 1 || sum.ElevatedRisk >= 3:
		return "Medium-High"
	case sum.ElevatedRisk >= 1 || sum.MediumRisk >= 3:
		return "Medium"
	case sum.MediumRisk >= 1:
		return "Low-Medium"
	default:
		return "Low"
	}
}

func writeScanSummary(b *strings.Builder, result *models.AnalyzeResult) {
	sum := result.Summary
	b.WriteString("## Scan Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(b, "| Files scanned | %d |\n", result.FilesScanned)
	fmt.Fprintf(b, "| Parse failures | %d |\n", len(result.ParseFailures))
	fmt.Fprintf(b, "| Raise sites | %d |\n", result.RaiseSites)
	fmt.Fprintf(b, "| Exception handlers | %d |\n", result.HandlerSites)
	fmt.Fprintf(b, "| Total crossings | %d |\n", sum.TotalCrossings)
	fmt.Fprintf(b, "| High risk | %d |\n", sum.HighRisk)
	fmt.Fprintf(b, "| Elevated risk | %d |\n", sum.ElevatedRisk)
	fmt.Fprintf(b, "| Medium risk | %d |\n", sum.MediumRisk)
	fmt.Fprintf(b, "| Low risk | %d |\n", sum.LowRisk)
	if sum.MeanCollapseRatio > 0 {
		fmt.Fprintf(b, "| Mean collapse ratio | %.0f%% |\n", sum.MeanCollapseRatio*100)
	}
	b.WriteString("\n---\n\n")
}

func writeFindings(b *strings.Builder, result *models.AnalyzeResult, significant []models.Crossing) {
	if len(significant) == 0 {
		if result.Summary.TotalCrossings > 0 {
			b.WriteString("## Findings\n\n")
			verb := "s are"
			if result.Summary.TotalCrossings == 1 {
				verb = " is"
			}
			fmt.Fprintf(b, "All %d crossing%s low risk. No action required.\n\n",
				result.Summary.TotalCrossings, verb)
		}
		b.WriteString("---\n\n")
		return
	}

	b.WriteString("## Findings\n\n")
	for _, c := range significant {
		sites := allSites(c)
		fmt.Fprintf(b, "### %s RISK: `%s` — %d raise site%s, 1 handler\n\n",
			strings.ToUpper(c.RiskLevel.String()), c.CaughtType,
			len(sites), plural(len(sites)))

		files := affectedFiles(c)
		if len(files) == 1 {
			fmt.Fprintf(b, "**File:** `%s`\n", files[0])
		} else if len(files) > 1 {
			quoted := make([]string, len(files))
			for i, f := range files {
				quoted[i] = "`" + f + "`"
			}
			fmt.Fprintf(b, "**Files:** %s\n", strings.Join(quoted, ", "))
		}

		fmt.Fprintf(b, "**Impact:** %s\n\n", describeImpact(c))

		b.WriteString("**Raise sites:**\n")
		shown := sites
		if len(shown) > 8 {
			shown = shown[:8]
		}
		for _, s := range shown {
			kind := "raise"
			if s.OriginKind.IsImplicit() {
				kind = "implicit"
			}
			line := fmt.Sprintf("- `%s:%d` %s `%s` in `%s`", s.File, s.Line, kind, c.CaughtType, s.EnclosingFunction)
			if s.Context != "" {
				line += " — " + s.Context
			}
			if s.Message != "" {
				line += fmt.Sprintf(" (`%q`)", truncate(s.Message, 60))
			}
			b.WriteString(line + "\n")
		}
		if len(sites) > 8 {
			fmt.Fprintf(b, "- ... and %d more\n", len(sites)-8)
		}
		b.WriteString("\n")

		fmt.Fprintf(b, "**Handler:** `%s:%d` — except `%s` in `%s` (%s)\n\n",
			c.Handler.File, c.Handler.Line, c.CaughtType,
			c.Handler.EnclosingFunction, dispositionVerb(c.Handler.Disposition))

		if c.EntropyBits > 0 {
			fmt.Fprintf(b, "**Information theory:** %.1f bits entropy, %.1f bits lost, %.0f%% collapse\n\n",
				c.EntropyBits, c.BitsLost, c.CollapseFraction*100)
		}

		fmt.Fprintf(b, "**Recommendation:** %s\n\n", recommend(c))
	}
	b.WriteString("---\n\n")
}

func writeBenchmarks(b *strings.Builder, name string, result *models.AnalyzeResult, density float64) {
	sum := result.Summary
	b.WriteString("## Benchmark Context\n\n")
	b.WriteString("| Project | Files | Crossings | Elevated+ | Density |\n")
	b.WriteString("|---------|-------|-----------|-----------|---------|\n")
	fmt.Fprintf(b, "| **%s** | **%d** | **%d** | **%d** | **%.2f** |\n",
		name, result.FilesScanned, sum.TotalCrossings, sum.HighRisk+sum.ElevatedRisk, density)

	names := make([]string, 0, len(benchmarks))
	for n := range benchmarks {
		if !strings.EqualFold(n, name) {
			names = append(names, n)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, c := benchmarks[names[i]], benchmarks[names[j]]
		if a.Density != c.Density {
			return a.Density > c.Density
		}
		return names[i] < names[j]
	})
	var avg float64
	for _, data := range benchmarks {
		avg += data.Density
	}
	avg /= float64(len(benchmarks))
	for _, n := range names {
		data := benchmarks[n]
		fmt.Fprintf(b, "| %s | %d | %d | %d | %.2f |\n",
			n, data.Files, data.Crossings, data.Elevated, data.Density)
	}
	b.WriteString("\n")

	switch {
	case density > avg*1.5:
		fmt.Fprintf(b, "%s's crossing density (%.2f) is significantly above the benchmark average (%.2f).\n", name, density, avg)
	case density < avg*0.5:
		fmt.Fprintf(b, "%s's crossing density (%.2f) is well below the benchmark average (%.2f).\n", name, density, avg)
	default:
		fmt.Fprintf(b, "%s's crossing density (%.2f) is in line with the benchmark average (%.2f).\n", name, density, avg)
	}
	b.WriteString("\n---\n\n")
}

func writeMethodology(b *strings.Builder) {
	b.WriteString("## Methodology\n\n")
	b.WriteString(
		"Crossing performs static AST analysis on Python source files. It maps " +
			"every `raise` statement to every `except` handler that could catch it, " +
			"then identifies **semantic boundary crossings**: places where the same " +
			"exception type is raised with different meanings in different contexts. " +
			"No code is executed; no network calls are made.\n\n")
	b.WriteString("Risk levels:\n")
	b.WriteString("- **Low:** Single raise site or uniform semantics\n")
	b.WriteString("- **Medium:** Multiple raise sites in different functions, handler may not distinguish\n")
	b.WriteString("- **Elevated:** Three or more distinct meanings collapsing through one handler\n")
	b.WriteString("- **High:** Four or more distinct meanings with near-total information loss\n")
}

func allSites(c models.Crossing) []models.SiteRef {
	sites := append([]models.SiteRef(nil), c.ConfirmedSites...)
	return append(sites, c.PossibleSites...)
}

func affectedFiles(c models.Crossing) []string {
	seen := map[string]bool{c.Handler.File: true}
	for _, s := range allSites(c) {
		seen[s.File] = true
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func affectedFilesAll(crossings []models.Crossing) []string {
	seen := map[string]bool{}
	for _, c := range crossings {
		for _, f := range affectedFiles(c) {
			seen[f] = true
		}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func describeImpact(c models.Crossing) string {
	sites := allSites(c)
	functions := map[string]bool{}
	files := map[string]bool{}
	for _, s := range sites {
		functions[s.EnclosingFunction] = true
		files[s.File] = true
	}

	var parts []string
	if len(sites) == 1 {
		parts = append(parts, fmt.Sprintf("Single `%s` raise site, no semantic ambiguity.", c.CaughtType))
	} else if len(files) > 1 {
		names := make([]string, 0, len(files))
		for f := range files {
			names = append(names, f)
		}
		sort.Strings(names)
		parts = append(parts, fmt.Sprintf(
			"`%s` is raised at %d sites across %d files (%s), in %d different functions.",
			c.CaughtType, len(sites), len(files), strings.Join(names, ", "), len(functions)))
	} else {
		parts = append(parts, fmt.Sprintf(
			"`%s` is raised at %d sites in %d different functions.",
			c.CaughtType, len(sites), len(functions)))
	}

	parts = append(parts, fmt.Sprintf(
		"A single handler in `%s` %s. With %d raise sites funneling through one "+
			"handler, semantic disambiguation is impossible.",
		c.Handler.EnclosingFunction, dispositionVerb(c.Handler.Disposition), len(sites)))

	if c.CollapseFraction > 0.5 {
		parts = append(parts, fmt.Sprintf(
			"Information collapse: %.0f%% of semantic information is lost (%.1f bits destroyed).",
			c.CollapseFraction*100, c.BitsLost))
	}
	return strings.Join(parts, " ")
}

func recommend(c models.Crossing) string {
	sites := allSites(c)
	implicit := 0
	for _, s := range sites {
		if s.OriginKind.IsImplicit() {
			implicit++
		}
	}
	explicit := len(sites) - implicit

	if len(sites) > 2 {
		switch c.Handler.Disposition {
		case models.DispositionReraise, models.DispositionTransformReraise:
			return "The handler re-raises, so downstream handlers inherit the ambiguity. " +
				"Consider adding context (chaining with `raise ... from`) or using " +
				"distinct exception subclasses."
		case models.DispositionReturnDefault, models.DispositionAssignDefault:
			return fmt.Sprintf(
				"Narrow the handler scope: isolate the specific call that may raise "+
					"`%s` inside the try block, so unrelated `%s` exceptions from other "+
					"code paths aren't caught.", c.CaughtType, c.CaughtType)
		}
	}

	if implicit > 0 && explicit > 0 {
		return fmt.Sprintf(
			"Handlers designed for explicit `%s` raises also catch %d implicit "+
				"source(s) (dict access, type conversions, etc.). Consider using "+
				"`.get()` or patterns that don't conflate the implicit raises with "+
				"the intentional ones.", c.CaughtType, implicit)
	}

	if isBroadBuiltin(c.CaughtType) && len(sites) > 3 {
		return fmt.Sprintf(
			"`%s` is a broad built-in type carrying %d different meanings here. "+
				"Consider defining project-specific exception subclasses, or narrowing "+
				"handler try-blocks to minimize the catch surface.", c.CaughtType, len(sites))
	}

	if c.RiskLevel == models.RiskLow {
		return "No action needed."
	}
	return fmt.Sprintf(
		"Review whether the handler can distinguish between the %d different "+
			"raise contexts.", len(sites))
}

func isBroadBuiltin(name string) bool {
	switch name {
	case "ValueError", "TypeError", "KeyError", "AttributeError",
		"RuntimeError", "IndexError", "OSError", "IOError", "Exception":
		return true
	}
	return false
}

func dispositionVerb(d models.Disposition) string {
	switch d {
	case models.DispositionReraise:
		return "re-raises"
	case models.DispositionTransformReraise:
		return "transforms and re-raises"
	case models.DispositionReturnDefault:
		return "returns a value"
	case models.DispositionAssignDefault:
		return "assigns a default"
	default:
		return "suppresses"
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func plural(n int) string {
	if n != 1 {
		return "s"
	}
	return ""
}
