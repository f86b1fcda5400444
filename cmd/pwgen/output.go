package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/pwgen/internal/pipeline"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// runReport is the machine-readable view of a run.
type runReport struct {
	ID         string      `json:"id" yaml:"id"`
	BaseTarget string      `json:"base_target" yaml:"base_target"`
	Limit      int         `json:"limit" yaml:"limit"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time   `json:"finished_at" yaml:"finished_at"`
	Total      int         `json:"total" yaml:"total"`
	Successful int         `json:"successful" yaml:"successful"`
	Failed     int         `json:"failed" yaml:"failed"`
	Healed     int         `json:"healed" yaml:"healed"`
	RunErrors  []string    `json:"run_errors,omitempty" yaml:"run_errors,omitempty"`
	Jobs       []jobReport `json:"jobs" yaml:"jobs"`
}

type jobReport struct {
	Target       string   `json:"target" yaml:"target"`
	Identifier   string   `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	PrimaryRef   string   `json:"primary_ref,omitempty" yaml:"primary_ref,omitempty"`
	SecondaryRef string   `json:"secondary_ref,omitempty" yaml:"secondary_ref,omitempty"`
	Errors       []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Repair       string   `json:"repair,omitempty" yaml:"repair,omitempty"`
}

func newRunReport(run *pipeline.Run) runReport {
	r := runReport{
		ID:         run.ID,
		BaseTarget: run.BaseTarget,
		Limit:      run.Limit,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Total:      run.Summary.Total,
		Successful: run.Summary.Successful,
		Failed:     run.Summary.Failed,
		Healed:     run.Summary.Healed,
		RunErrors:  run.Summary.RunErrors,
		Jobs:       []jobReport{},
	}
	for _, job := range run.Order() {
		r.Jobs = append(r.Jobs, jobReport{
			Target:       job.Target,
			Identifier:   job.Identifier,
			PrimaryRef:   job.PrimaryRef,
			SecondaryRef: job.SecondaryRef,
			Errors:       job.Errors,
			Repair:       string(job.Repair),
		})
	}
	return r
}

// writeRun renders a run in the requested format.
func writeRun(w io.Writer, run *pipeline.Run, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newRunReport(run))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newRunReport(run)); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		writeRunText(w, run)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeRunText(w io.Writer, run *pipeline.Run) {
	s := run.Summary
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Run"), run.ID)
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Base:"), run.BaseTarget)
	fmt.Fprintf(w, "  %s %d  %s %s  %s %s  %s %d\n",
		colorize(colorBold, "Total:"), s.Total,
		colorize(colorBold, "Successful:"), colorize(colorGreen, fmt.Sprint(s.Successful)),
		colorize(colorBold, "Failed:"), colorize(colorRed, fmt.Sprint(s.Failed)),
		colorize(colorBold, "Healed:"), s.Healed,
	)
	for _, e := range s.RunErrors {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorRed, "run error:"), e)
	}

	for _, job := range run.Order() {
		mark := colorize(colorGreen, "✓")
		if !job.Healthy() {
			mark = colorize(colorRed, "✗")
		}
		fmt.Fprintf(w, "%s %s\n", mark, job.Target)
		if job.PrimaryRef != "" {
			fmt.Fprintf(w, "    page object: %s\n", job.PrimaryRef)
		}
		if job.SecondaryRef != "" {
			fmt.Fprintf(w, "    spec:        %s\n", job.SecondaryRef)
		}
		if job.Repair == pipeline.RepairHealed {
			fmt.Fprintf(w, "    %s\n", colorize(colorYellow, "repaired"))
		}
		if len(job.Errors) > 0 {
			fmt.Fprintf(w, "    errors: %s\n", strings.Join(job.Errors, "; "))
		}
		if job.Diagnostic != "" && !job.Healthy() {
			fmt.Fprintf(w, "    diagnostic: %s\n", firstLine(job.Diagnostic))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
