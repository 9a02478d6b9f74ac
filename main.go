package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fridayops/crossing/pkg/config"
	"github.com/fridayops/crossing/pkg/models"
	"github.com/fridayops/crossing/pkg/output"
	"github.com/fridayops/crossing/pkg/scan"
	"github.com/fridayops/crossing/pkg/utils"
	"github.com/fridayops/crossing/pkg/version"
)

func main() {
	var (
		path        = flag.String("path", ".", "Root directory of the Python source tree to analyze")
		configFile  = flag.String("config", "", "Path to a TOML configuration file (defaults to built-in config)")
		maxDepth    = flag.Int("max-depth", 0, "Maximum call-graph traversal depth (overrides config when positive)")
		minRisk     = flag.String("min-risk", "", "Minimum risk level to report: none, low, medium, elevated, high (overrides config)")
		allowTypes  = flag.String("allow", "", "Comma-separated exception type names to exclude from scoring")
		noImplicit  = flag.Bool("no-implicit", false, "Disable structural raise-site detection (dict lookups, conversions, etc.)")
		format      = flag.String("format", "json", "Output format: json or report")
		projectName = flag.String("name", "", "Project name for the report header (defaults to the scanned directory)")
		repo        = flag.String("repo", "", "Repository slug for the report header, e.g. org/project")
		outputFile  = flag.String("o", "", "Write output to a file instead of stdout")
		verbose     = flag.Bool("v", false, "Verbose output")
		showVersion = flag.Bool("version", false, "Show version information and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersionWithCommit())
		os.Exit(0)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFromFile(*configFile)
	} else {
		cfg, err = config.DefaultConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *maxDepth > 0 {
		cfg.Analysis.MaxCallDepth = *maxDepth
	}
	if *minRisk != "" {
		cfg.Analysis.MinRiskLevel = *minRisk
	}
	if *allowTypes != "" {
		cfg.Analysis.AllowedTypes = append(cfg.Analysis.AllowedTypes, utils.ParseCommaDelimited(*allowTypes)...)
	}
	if *noImplicit {
		cfg.Analysis.DetectImplicit = false
	}

	scanner := scan.NewScanner(logger, cfg)
	result, err := scanner.Analyze(context.Background(), *path)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	name := *projectName
	if name == "" {
		name = filepath.Base(result.Root)
	}

	if err := writeResult(result, *format, *outputFile, name, *repo); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}

func writeResult(result *models.AnalyzeResult, format, outputFile, name, repo string) error {
	w := os.Stdout
	if outputFile != "" {
		f, err := utils.SafeCreateFile(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", outputFile, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		return output.WriteJSON(w, result)
	case "report":
		return output.WriteReport(w, result, output.ReportOptions{
			ProjectName: name,
			Repo:        repo,
			Version:     version.GetVersion(),
		})
	default:
		return fmt.Errorf("unknown output format %q (expected json or report)", format)
	}
}
