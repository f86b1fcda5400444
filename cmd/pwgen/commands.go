package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/pwgen/internal/config"
	"github.com/kalambet/pwgen/internal/pipeline"
	"github.com/kalambet/pwgen/internal/storage"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Generate page objects and tests for a site",
	Long: `Crawl <url>, then extract, generate, verify and repair a page object and
a Playwright spec for each discovered page.

Examples:
  pwgen run https://the-internet.herokuapp.com --limit 3
  pwgen run https://shop.example.com --hints "guest checkout" --output yaml
  pwgen run https://example.com --open-ui`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hints, _ := cmd.Flags().GetString("hints")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		output, _ := cmd.Flags().GetString("output")
		open, _ := cmd.Flags().GetBool("open-ui")

		if output != formatText && output != formatJSON && output != formatYAML {
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
		}

		a, err := loadApp(cmd.Context(), appOptions{Concurrency: concurrency, PullModels: true})
		if err != nil {
			return err
		}
		defer a.Close()

		limit := a.cfg.Pipeline.DefaultLimit
		if cmd.Flags().Changed("limit") {
			limit, _ = cmd.Flags().GetInt("limit")
		}
		if limit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		printStep("Generating tests for %s (limit %d)", args[0], limit)
		run := a.pipeline.Execute(cmd.Context(), args[0], limit, hints)

		if err := writeRun(os.Stdout, run, output); err != nil {
			return err
		}

		switch {
		case run.Summary.Total == 0 && len(run.Summary.RunErrors) > 0:
			return fmt.Errorf("run %s failed: %s", run.ID, strings.Join(run.Summary.RunErrors, "; "))
		case run.Summary.Failed > 0:
			printWarning("%d of %d pages failed", run.Summary.Failed, run.Summary.Total)
		default:
			printSuccess("Generated %d page objects in %s", run.Summary.Successful, a.cfg.Output.Dir)
		}

		if open {
			if !shouldOpenUI(run) {
				printWarning("No page succeeded; not opening the Playwright UI")
				return nil
			}
			printStep("Opening Playwright UI")
			if err := openUI(a.cfg.Output.Dir); err != nil {
				printError("could not open Playwright UI: %v", err)
			}
		}
		return nil
	},
}

// shouldOpenUI reports whether there is anything to show.
func shouldOpenUI(run *pipeline.Run) bool {
	return run.Summary.Successful > 0
}

// openUI launches the Playwright UI runner in dir without waiting for it.
var openUI = func(dir string) error {
	c := exec.Command("npx", "playwright", "test", "--ui")
	c.Dir = dir
	c.Stdout = os.Stderr
	c.Stderr = os.Stderr
	return c.Start()
}

func init() {
	runCmd.Flags().Int("limit", pipeline.DefaultLimit, "maximum number of pages to process (default from pipeline.default_limit)")
	runCmd.Flags().String("hints", "", "user stories or hints passed to extraction and test generation")
	runCmd.Flags().Int("concurrency", 0, "pages processed in parallel (default from pipeline.concurrency)")
	runCmd.Flags().StringP("output", "o", formatText, "output format: text, json or yaml")
	runCmd.Flags().Bool("open-ui", false, "open the Playwright UI when at least one page succeeded")
}

// --- crawl ---

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "List the same-site links found on a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), appOptions{NoStore: true})
		if err != nil {
			return err
		}
		defer a.Close()

		links, err := a.crawler.Crawl(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(links) == 0 {
			fmt.Println("No links found.")
			return nil
		}
		for _, link := range links {
			fmt.Println(link)
		}
		printSuccess("Found %d links", len(links))
		return nil
	},
}

// --- verify ---

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check that a generated page object compiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), appOptions{NoStore: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ok, diagnostic, err := a.verifier.Verify(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			printError("Invalid: %s", args[0])
			fmt.Fprintln(os.Stderr, diagnostic)
			return errors.New("verification failed")
		}
		printSuccess("Valid: %s", args[0])
		return nil
	},
}

// --- repair ---

var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Ask the LLM to fix a generated file in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diagnostic, _ := cmd.Flags().GetString("error")

		a, err := loadApp(cmd.Context(), appOptions{NoStore: true, PullModels: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if diagnostic == "" {
			if ok, d, err := a.verifier.Verify(cmd.Context(), args[0]); err == nil && !ok {
				diagnostic = d
			}
		}

		printStep("Repairing %s", args[0])
		if err := a.repairer.Repair(cmd.Context(), args[0], diagnostic); err != nil {
			return err
		}
		printSuccess("Repaired: %s", args[0])
		return nil
	},
}

func init() {
	repairCmd.Flags().String("error", "", "error message to guide the repair (default: run verify first)")
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), limit, 0)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}
		for _, r := range runs {
			fmt.Println(formatRunSummary(r))
		}
		return nil
	},
}

func formatRunSummary(r storage.RunSummary) string {
	return fmt.Sprintf("%s  %s  %s  %d/%d ok",
		colorize(colorCyan, shortID(r.ID)),
		r.StartedAt.Local().Format("2006-01-02 15:04"),
		r.BaseTarget,
		r.Summary.Successful,
		r.Summary.Total,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("run %s not found", args[0])
		}
		if err != nil {
			return err
		}
		return writeRun(os.Stdout, run, output)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			return err
		}
		printSuccess("Deleted run %s", args[0])
		return nil
	},
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg.Storage.DataDir)
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsShowCmd.Flags().StringP("output", "o", formatText, "output format: text, json or yaml")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

// --- submit / job (talk to a running server) ---

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Queue a run on the running pwgen server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hints, _ := cmd.Flags().GetString("hints")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"url": args[0]}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			req["limit"] = limit
		}
		if hints != "" {
			req["hints"] = hints
		}

		resp, err := client.post(cmd.Context(), "/runs", req)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued job %s", result["job_id"])
		return nil
	},
}

func init() {
	submitCmd.Flags().Int("limit", pipeline.DefaultLimit, "maximum number of pages to process (default from the server)")
	submitCmd.Flags().String("hints", "", "user stories or hints")
}

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show the status of a queued run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/jobs/"+args[0])
		if err != nil {
			return err
		}
		var job storage.Job
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printStatus("Job", "%s", job.ID)
		printStatus("Status", "%s", job.Status)
		printStatus("Attempts", "%d/%d", job.Attempts, job.MaxAttempts)
		if job.LastError != "" {
			printStatus("Last error", "%s", job.LastError)
		}
		if job.ResultID != "" {
			printStatus("Run", "%s", job.ResultID)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		keys := config.ShowAll(cfg)
		if asJSON {
			values := make(map[string]string, len(keys))
			for _, k := range keys {
				values[k.Key] = k.Value
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(values)
		}
		for _, k := range keys {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (" + strings.Join(config.SecretKeys(), ", ") + ") in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("json", false, "print as JSON")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
