package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/cli"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/rules"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule files",
	Long: `Validate rule files for syntax and compile errors.

The lint command loads rule files exactly the way the running engine
does: YAML parsing, duplicate ID detection, severity validation, and
condition and action template compilation. A file that lints clean will
hot-reload without falling back to the previous rule set.

Examples:
  # Lint a single file
  acs lint --file config/rules.yaml

  # Lint every rule file in a directory
  acs lint --dir rules/

  # JSON output for CI
  acs lint --file config/rules.yaml --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "rule file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of rule files")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// lintResult is the validation outcome for one rule file.
type lintResult struct {
	File      string   `json:"file"`
	Valid     bool     `json:"valid"`
	RuleCount int      `json:"ruleCount,omitempty"`
	Version   string   `json:"version,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list rule files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no rule files found")
	}

	results := make([]lintResult, 0, len(files))
	failed := false
	for _, file := range files {
		result := lintFile(file)
		if !result.Valid {
			failed = true
		}
		results = append(results, result)
	}

	if lintFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("✓ %s: %d rules (version %s)\n", r.File, r.RuleCount, r.Version)
				continue
			}
			fmt.Printf("✗ %s\n", r.File)
			for _, msg := range r.Errors {
				fmt.Printf("    %s\n", msg)
			}
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func lintFile(path string) lintResult {
	result := lintResult{File: path}

	set, err := rules.LoadFile(path)
	if err != nil {
		var compileErr *rules.RuleCompileError
		if errors.As(err, &compileErr) {
			result.Errors = append(result.Errors, compileErr.Error())
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	result.Valid = true
	result.RuleCount = set.Len()
	result.Version = set.Version()
	return result
}
