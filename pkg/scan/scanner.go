package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/fridayops/crossing/pkg/analysis/crossing"
	"github.com/fridayops/crossing/pkg/analysis/risk"
	"github.com/fridayops/crossing/pkg/callgraph"
	"github.com/fridayops/crossing/pkg/config"
	"github.com/fridayops/crossing/pkg/extract"
	"github.com/fridayops/crossing/pkg/hierarchy"
	"github.com/fridayops/crossing/pkg/models"
	"github.com/fridayops/crossing/pkg/utils"
)

// Scanner runs the full analysis pipeline over a source tree: per-file
// extraction, hierarchy resolution, call graph construction, crossing
// detection, and scoring. One Scanner handles one Analyze call at a time.
type Scanner struct {
	logger *slog.Logger
	cfg    *config.Config
}

// NewScanner creates a scanner with the given configuration.
func NewScanner(logger *slog.Logger, cfg *config.Config) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger, cfg: cfg}
}

// Analyze runs the pipeline over every Python file under root. Configuration
// and input-discovery failures are fatal and return an error before any
// analysis starts; per-file parse failures are recorded in the result and
// never abort the run.
func (s *Scanner) Analyze(ctx context.Context, root string) (*models.AnalyzeResult, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	minRisk, err := s.cfg.MinRisk()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfiguration, err)
	}

	if !utils.DirectoryExists(root) {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrNoInput, root)
	}

	files, err := utils.CollectSourceFiles(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNoInput, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no Python source files under %s", models.ErrNoInput, root)
	}
	s.logger.Info("starting analysis", "root", root, "files", len(files))

	facts, failures, err := s.extractAll(ctx, root, files)
	if err != nil {
		return nil, err
	}

	var classes []models.ClassDecl
	raiseCount, handlerCount := 0, 0
	for i := range facts {
		classes = append(classes, facts[i].Classes...)
		for _, fn := range facts[i].Functions {
			raiseCount += len(fn.RaiseSites)
			handlerCount += len(fn.HandlerSites)
		}
	}

	hier := hierarchy.Resolve(s.logger, classes)
	graph := callgraph.NewBuilder(s.logger).Build(facts)

	warnings := append([]models.Warning(nil), hier.Warnings()...)
	for _, u := range graph.Unresolved() {
		warnings = append(warnings, models.Warning{
			Kind:    "unresolved_call",
			Subject: u.Caller,
			Detail:  fmt.Sprintf("%s at %s:%d", u.Callee, u.Location.File, u.Location.Line),
		})
	}
	warnings = append(warnings, nonExceptionCatches(hier, facts)...)

	detector := crossing.NewDetector(s.logger, graph, hier, s.cfg.Analysis.MaxCallDepth)
	findings := detector.Detect()

	scorer := risk.NewScorer(s.logger, s.cfg.RiskBanding)
	var crossings []models.Crossing
	for i := range findings {
		f := &findings[i]
		if s.cfg.TypeAllowed(f.Crossing.CaughtType) {
			continue
		}
		scorer.Score(f)
		if f.Crossing.RiskLevel < minRisk {
			continue
		}
		crossings = append(crossings, f.Crossing)
	}

	result := &models.AnalyzeResult{
		Root:          filepath.Clean(root),
		FilesScanned:  len(facts),
		ParseFailures: failures,
		Warnings:      warnings,
		RaiseSites:    raiseCount,
		HandlerSites:  handlerCount,
		Crossings:     crossings,
		Summary:       summarize(crossings),
	}
	s.logger.Info("analysis complete",
		"files_scanned", result.FilesScanned,
		"parse_failures", len(result.ParseFailures),
		"crossings", len(result.Crossings))
	return result, nil
}

// extractAll parses files in parallel. Results land in slices indexed by the
// sorted file list, so output ordering never depends on goroutine scheduling.
func (s *Scanner) extractAll(ctx context.Context, root string, files []string) ([]models.FileFacts, []models.ParseFailure, error) {
	extractor := extract.NewExtractor(s.logger, s.cfg.Analysis.DetectImplicit)

	factsByFile := make([]*models.FileFacts, len(files))
	failuresByFile := make([]*models.ParseFailure, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			content, err := os.ReadFile(path)
			if err != nil {
				failuresByFile[i] = &models.ParseFailure{File: rel, Reason: err.Error()}
				return nil
			}
			facts, err := extractor.ExtractFile(gctx, rel, utils.ModuleName(root, path), content)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("skipping file", "file", rel, "reason", err)
				failuresByFile[i] = &models.ParseFailure{File: rel, Reason: err.Error()}
				return nil
			}
			factsByFile[i] = facts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var facts []models.FileFacts
	var failures []models.ParseFailure
	for i := range files {
		if factsByFile[i] != nil {
			facts = append(facts, *factsByFile[i])
		}
		if failuresByFile[i] != nil {
			failures = append(failures, *failuresByFile[i])
		}
	}
	return facts, failures, nil
}

// nonExceptionCatches warns about except clauses naming a type that does not
// participate in the exception hierarchy. Catching such a name never matches
// at runtime, so any crossing computed against it is noise.
func nonExceptionCatches(hier *hierarchy.Hierarchy, facts []models.FileFacts) []models.Warning {
	var warnings []models.Warning
	seen := make(map[string]bool)
	for i := range facts {
		for _, fn := range facts[i].Functions {
			for _, h := range fn.HandlerSites {
				for _, caught := range h.CaughtTypes {
					if seen[caught] || hier.IsException(caught) {
						continue
					}
					seen[caught] = true
					detail := "caught type does not descend from BaseException"
					if hier.Lookup(caught) == nil {
						detail = "caught name is not a known type"
					}
					warnings = append(warnings, models.Warning{
						Kind:    "non_exception_catch",
						Subject: h.EnclosingFunction,
						Detail:  caught + ": " + detail,
					})
				}
			}
		}
	}
	return warnings
}

func summarize(crossings []models.Crossing) models.Summary {
	var sum models.Summary
	sum.TotalCrossings = len(crossings)
	var collapseTotal float64
	for _, c := range crossings {
		switch c.RiskLevel {
		case models.RiskHigh:
			sum.HighRisk++
		case models.RiskElevated:
			sum.ElevatedRisk++
		case models.RiskMedium:
			sum.MediumRisk++
		case models.RiskLow:
			sum.LowRisk++
		}
		sum.TotalInformationLoss += c.BitsLost
		collapseTotal += c.CollapseFraction
	}
	if len(crossings) > 0 {
		sum.MeanCollapseRatio = collapseTotal / float64(len(crossings))
	}
	return sum
}
