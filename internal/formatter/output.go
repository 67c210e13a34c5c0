// Package formatter renders analysis results for terminals and scripts.
package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploy-doctor/internal/domain"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Supported output formats.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Render writes result to w in the given format.
func Render(w io.Writer, result *domain.AnalysisResult, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatYAML:
		return renderYAML(w, result)
	case FormatHuman, "":
		renderHuman(w, result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use human, json or yaml)", format)
	}
}

func renderJSON(w io.Writer, result *domain.AnalysisResult) error {
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func renderYAML(w io.Writer, result *domain.AnalysisResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return enc.Close()
}

func renderHuman(w io.Writer, result *domain.AnalysisResult) {
	switch result.Variant {
	case domain.VariantFileFix:
		renderFileFix(w, result.FileFix)
	case domain.VariantLogDiagnosis:
		renderDiagnosis(w, result.LogDiagnosis)
	}

	fmt.Fprintln(w, strings.Repeat("─", 80))
	fmt.Fprintln(w, color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func renderFileFix(w io.Writer, fix *domain.FileFix) {
	if fix == nil {
		return
	}
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(w)
	red.Fprintln(w, "WHY IT FAILED:")
	fmt.Fprintln(w, indent(fix.Explanation, "   "))
	fmt.Fprintln(w)

	green.Fprintln(w, "HOW TO FIX IT:")
	fmt.Fprintln(w, indent(fix.Solution, "   "))
	fmt.Fprintln(w)

	cyan.Fprintln(w, "FILES:")
	for _, f := range fix.Files {
		fmt.Fprintf(w, "   %s %s\n", color.New(color.Bold).Sprint(f.Name), color.HiBlackString("(%s)", f.Language))
		fmt.Fprintln(w, indent(f.Content, "   │ "))
		fmt.Fprintln(w)
	}
}

func renderDiagnosis(w io.Writer, d *domain.LogDiagnosis) {
	if d == nil {
		return
	}
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(w)
	red.Fprintln(w, "DIAGNOSIS:")
	fmt.Fprintln(w, indent(d.Diagnosis, "   "))
	fmt.Fprintln(w)

	yellow.Fprintln(w, "PROBABLE CAUSES:")
	for i, cause := range d.ProbableCauses {
		fmt.Fprintf(w, "   %d. %s\n", i+1, cause)
	}
	fmt.Fprintln(w)

	cyan.Fprintln(w, "SUGGESTED FIXES:")
	for i, fix := range d.SuggestedFixes {
		fmt.Fprintf(w, "   %d. %s\n", i+1, color.New(color.Bold).Sprint(fix.Title))
		fmt.Fprintln(w, indent(fix.Description, "      "))
		if fix.Code != "" {
			fmt.Fprintln(w, color.CyanString(indent(fix.Code, "      $ ")))
		}
		fmt.Fprintln(w)
	}
}

// RenderError writes a failure and its hint.
func RenderError(w io.Writer, err error) {
	red := color.New(color.FgRed)
	red.Fprintf(w, "✗ %v\n", err)
	if hint := domain.Hint(err); hint != "" {
		fmt.Fprintf(w, "  %s\n", color.YellowString(hint))
	}
}

// WriteFiles writes the files of a file-fix result under dir and returns their paths.
// Only the base name of each proposed file is used.
func WriteFiles(dir string, fix *domain.FileFix) ([]string, error) {
	if fix == nil || len(fix.Files) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	written := make([]string, 0, len(fix.Files))
	for _, f := range fix.Files {
		name := filepath.Base(filepath.Clean("/" + f.Name))
		if name == "/" || name == "." {
			return written, fmt.Errorf("invalid file name %q", f.Name)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
