// Command tenlib drives the translation pipeline from the shell:
// translate, fix, and fix-style share one config and one pipeline
// wiring; review and write are reserved for later phases.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/orchestrator"
)

var langTagPattern = regexp.MustCompile(`^[a-zA-Z0-9-]{1,10}$`)

var supportedExtensions = map[string]bool{
	".epub": true,
	".txt":  true,
	".md":   true,
	".pdf":  true,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "translate":
		return runTranslate(args[1:], logger)
	case "fix":
		return runFix(args[1:], logger)
	case "fix-style":
		return runFixStyle(args[1:], logger)
	case "check":
		return runCheck(args[1:], logger)
	case "review":
		return runReview(args[1:], logger)
	case "write":
		return runWrite(args[1:], logger)
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: tenlib <command> [flags]

commands:
  translate  -file <path> -source <lang> -target <lang>
  fix        -original <path> -translation <path> -target <lang> [-source <lang>]
  fix-style  -file <path> -target <lang> [-source <lang>]
  check      probe every configured model for reachability
  review     (reserved for a future phase)
  write      (reserved for a future phase)`)
}

func validateManuscriptPath(path string) error {
	if path == "" {
		return errors.New("a manuscript path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("manuscript not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a manuscript file", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return fmt.Errorf("unsupported manuscript extension %q (expected one of .epub, .txt, .md, .pdf)", ext)
	}
	return nil
}

func validateLangTag(name, tag string) error {
	if !langTagPattern.MatchString(tag) {
		return fmt.Errorf("%s must be a short alphanumeric language tag (got %q)", name, tag)
	}
	return nil
}

func runTranslate(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	file := fs.String("file", "", "path to the manuscript (.epub, .txt, .md, .pdf)")
	source := fs.String("source", "", "source language tag")
	target := fs.String("target", "", "target language tag")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := validateManuscriptPath(*file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := validateLangTag("-source", *source); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := validateLangTag("-target", *target); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, p, err := openPipeline(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()
	_ = cfg

	result, err := p.orchestrator.Run(context.Background(), *file, *source, *target)
	return report(result, err, logger)
}

func runFix(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("fix", flag.ContinueOnError)
	original := fs.String("original", "", "path to the original manuscript")
	translation := fs.String("translation", "", "path to the existing translation")
	target := fs.String("target", "", "target language tag")
	source := fs.String("source", "", "source language tag")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := validateManuscriptPath(*original); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := validateManuscriptPath(*translation); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := validateLangTag("-target", *target); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *source != "" {
		if err := validateLangTag("-source", *source); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if strings.EqualFold(*source, *target) {
			fmt.Fprintln(os.Stderr, "-source and -target must differ")
			return 1
		}
	}

	_, p, err := openPipeline(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	result, err := p.orchestrator.RunFix(context.Background(), *original, *translation, *target, *source)
	return report(result, err, logger)
}

func runFixStyle(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("fix-style", flag.ContinueOnError)
	file := fs.String("file", "", "path to the existing translation")
	target := fs.String("target", "", "target language tag")
	source := fs.String("source", "", "source language tag")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := validateManuscriptPath(*file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := validateLangTag("-target", *target); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	_, p, err := openPipeline(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	result, err := p.orchestrator.RunFixStyle(context.Background(), *file, *target, *source)
	return report(result, err, logger)
}

func openPipeline(logger *slog.Logger) (Config, *pipeline, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return Config{}, nil, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, nil, err
	}
	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, p, nil
}

func report(result orchestrator.PipelineResult, err error, logger *slog.Logger) int {
	if err != nil {
		if errors.Is(err, tenlib.ErrAllModelsExhausted) {
			fmt.Printf("Pausado: %d/%d chunks traducidos, %d marcados para revisión\n", result.Translated, result.TotalChunks, result.Flagged)
			fmt.Fprintln(os.Stderr, "every configured model has exhausted its daily quota; rerun later to resume")
			return 2
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if result.WasResumed {
		fmt.Printf("Reanudado: %d/%d chunks traducidos, %d marcados para revisión\n", result.Translated, result.TotalChunks, result.Flagged)
	} else {
		fmt.Printf("Completado: %d/%d chunks traducidos, %d marcados para revisión\n", result.Translated, result.TotalChunks, result.Flagged)
	}
	fmt.Printf("Salida: %s\n", result.OutputPath)
	return 0
}
