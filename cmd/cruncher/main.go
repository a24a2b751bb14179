package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/petersaints/YanuX-Cruncher/internal/config"
	"github.com/petersaints/YanuX-Cruncher/internal/db"
	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
	"github.com/petersaints/YanuX-Cruncher/internal/monitoring"
	"github.com/petersaints/YanuX-Cruncher/internal/version"
)

var (
	dataPath       = flag.String("data", "", "Fingerprint survey CSV (required)")
	testDataPath   = flag.String("test-data", "", "Optional CSV whose samples are predicted instead of the training rows")
	configPath     = flag.String("config", "", "Evaluation config (.json, .yaml or .yml)")
	outDir         = flag.String("out", "out", "Directory for scenario, result and summary CSV files")
	prefix         = flag.String("prefix", "", "Prefix added to every output file and scenario name")
	dbPath         = flag.String("db", "", "SQLite results database; empty disables it")
	features       = flag.String("features", "", "Comma-separated feature columns")
	featurePrefix  = flag.String("feature-prefix", "", "Select every numeric column with this prefix as a feature")
	coords         = flag.String("coords", "x,y", "Comma-separated coordinate columns")
	fromUnits      = flag.String("from-units", "dBm", "Unit the survey signal strengths are recorded in")
	toUnits        = flag.String("to-units", "dBm", "Unit signal strengths are converted to before evaluation")
	neighbors      = flag.Int("neighbors", 5, "Number of neighbours")
	weights        = flag.String("weights", "uniform", "Neighbour weighting: uniform or distance")
	workers        = flag.Int("workers", 1, "Folds evaluated concurrently")
	partials       = flag.String("partials", "", "Comma-separated fractions of samples per location, e.g. 0.25,0.5")
	filenamePrefix = flag.String("filename-prefix", "", "Comma-separated survey file prefixes to build scenarios for")
	subset         = flag.Float64("subset", 1, "Share of locations kept, in (0, 1]")
	seed           = flag.Int64("seed", 1, "Seed for location subsetting")
	fillMissing    = flag.Float64("fill-missing", 0, "Value replacing missing signal readings")
	reportDir      = flag.String("report", "", "Directory for the error CDF plot and metrics chart; empty disables reports")
	verbose        = flag.Bool("verbose", false, "Log every fold and file written")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrate(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		}
	}

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	if *dataPath == "" {
		log.Fatal("-data is required")
	}

	cfg := config.EmptyEvaluationConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	visited := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { visited[f.Name] = true })
	if err := applyFlags(cfg, visited); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	p := &pipeline{
		fs:           fsutil.OSFileSystem{},
		cfg:          cfg,
		dataPath:     *dataPath,
		testDataPath: *testDataPath,
		outDir:       *outDir,
		prefix:       *prefix,
		reportDir:    *reportDir,
	}
	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open results database: %v", err)
		}
		defer database.Close()
		p.db = database
	}

	failed, err := p.run()
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
	if len(failed) > 0 {
		log.Fatalf("%d scenarios failed: %s", len(failed), strings.Join(failed, ", "))
	}
}

// applyFlags copies the flags given on the command line over cfg. Flags left
// at their defaults do not override values from the config file.
func applyFlags(cfg *config.EvaluationConfig, visited map[string]bool) error {
	if visited["features"] {
		cfg.Features = splitList(*features)
	}
	if visited["feature-prefix"] {
		cfg.FeaturePrefix = featurePrefix
	}
	if visited["coords"] {
		cfg.Coords = splitList(*coords)
	}
	if visited["from-units"] {
		cfg.FromUnits = fromUnits
	}
	if visited["to-units"] {
		cfg.ToUnits = toUnits
	}
	if visited["neighbors"] {
		cfg.Neighbors = neighbors
	}
	if visited["weights"] {
		cfg.Weights = weights
	}
	if visited["workers"] {
		cfg.Workers = workers
	}
	if visited["partials"] {
		fractions, err := parseFloats(*partials)
		if err != nil {
			return fmt.Errorf("-partials: %w", err)
		}
		cfg.Partials = fractions
	}
	if visited["filename-prefix"] {
		cfg.FilenamePrefixes = splitList(*filenamePrefix)
	}
	if visited["subset"] {
		cfg.SubsetRatio = subset
	}
	if visited["seed"] {
		cfg.Seed = seed
	}
	if visited["fill-missing"] {
		cfg.FillMissing = fillMissing
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range splitList(s) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	path := fs.String("db", "cruncher.db", "SQLite results database")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: cruncher migrate [-db path] <up|down|status|force N|help>")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if err := db.RunMigrateCommand(fs.Args(), *path, os.Stdout); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}
