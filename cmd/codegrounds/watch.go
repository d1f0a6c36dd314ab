package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/assist"
	"github.com/jxucoder/codegrounds/internal/debounce"
	"github.com/jxucoder/codegrounds/internal/execution"
	"github.com/jxucoder/codegrounds/internal/harness"
	"github.com/jxucoder/codegrounds/internal/hint"
	"github.com/jxucoder/codegrounds/internal/playground"
)

// testDelay is the quiet period after a save before tests re-run.
const testDelay = 500 * time.Millisecond

var (
	watchProblem  string
	watchCases    string
	watchLanguage string
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Stream hints and re-run tests whenever a source file is saved",
	Long: `Watch a source file. Every save is recorded as an edit of a local coding
session: hints stream after the editor has been quiet for the configured
debounce, and test cases (if given) re-run after each save.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchProblem, "problem", "p", "", "problem statement the code is solving")
	watchCmd.Flags().StringVar(&watchCases, "cases", "", "YAML file with test cases")
	watchCmd.Flags().StringVarP(&watchLanguage, "language", "l", "", "language id (default: detected from the extension)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := readSource(args[0], watchLanguage)
	if err != nil {
		return err
	}
	var cases []harness.TestCase
	if watchCases != "" {
		if cases, err = loadCases(watchCases); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	logger := pslog.Ctx(ctx)
	bus := playground.NewEventBus()
	sess, err := playground.NewSession(playground.Deps{
		Executor:  execution.NewClient(cfg.Execution.URL, cfg.Execution.Timeout),
		Hints:     hint.NewHTTPService(cfg.AI.BaseURL, cfg.AI.Token),
		Assistant: assist.NewClient(cfg.AI.BaseURL, cfg.AI.Token, cfg.AI.Timeout),
		Bus:       bus,
		Logger:    logger,
	}, playground.Options{
		Language:         src.Language.ID,
		ProblemStatement: watchProblem,
		AIEnabled:        cfg.Hint.Enabled && watchProblem != "",
		HistoryCapacity:  cfg.History.Capacity,
		Debounce:         cfg.Hint.Debounce,
		HintTimeout:      cfg.AI.Timeout,
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	if cases != nil {
		sess.SetTestCases(cases)
	}

	events := bus.Subscribe(sess.ID)
	defer bus.Unsubscribe(sess.ID, events)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file on save, so watch its directory.
	path, err := filepath.Abs(src.Path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	var tests debounce.Scheduler
	defer tests.Cancel()
	load := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("reading source failed", "err", err)
			return
		}
		if string(data) == sess.Code() {
			return
		}
		if err := sess.Edit(string(data)); err != nil {
			logger.Warn("recording edit failed", "err", err)
			return
		}
		if cases != nil {
			tests.Schedule(testDelay, func() {
				if _, err := sess.RunTests(ctx); err != nil {
					logger.Warn("starting tests failed", "err", err)
				}
			})
		}
	}
	load()
	fmt.Fprintf(os.Stderr, "watching %s (%s), press Ctrl+C to stop\n", src.Path, src.Language.Name)

	printer := &tokenPrinter{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			load()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(printer, ev)
		}
	}
}

func printEvent(printer *tokenPrinter, ev *playground.Event) {
	switch data := ev.Data.(type) {
	case hint.View:
		switch data.State {
		case hint.StateRequesting:
			printer.printed = 0
			fmt.Println("\n--- hint ---")
		case hint.StateFailed:
			fmt.Fprintln(os.Stderr, data.Message)
		}
		printer.observe(data)
		if data.State == hint.StateCompleted {
			fmt.Println()
		}
	case harness.Result:
		status := "pass"
		if !data.Passed {
			status = "FAIL"
		}
		fmt.Printf("case #%d %s  expected %q got %q\n", data.Index+1, status, data.Expected, data.Actual)
	case playground.RunSummary:
		if !data.Stopped {
			fmt.Printf("%d/%d passed\n", data.Report.Passed, data.Report.Total)
		}
	}
}
