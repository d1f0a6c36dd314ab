package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/execution"
	"github.com/jxucoder/codegrounds/internal/harness"
)

var (
	runStdin    string
	runLanguage string
	testCases   string
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Run a source file once on the execution service",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var testCmd = &cobra.Command{
	Use:   "test FILE",
	Short: "Run a source file against the test cases in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTest,
}

func init() {
	runCmd.Flags().StringVar(&runStdin, "stdin", "", "standard input for the program")
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "", "language id (default: detected from the extension)")
	rootCmd.AddCommand(runCmd)

	testCmd.Flags().StringVar(&testCases, "cases", "", "YAML file with test cases")
	testCmd.Flags().StringVarP(&runLanguage, "language", "l", "", "language id (default: detected from the extension)")
	testCmd.MarkFlagRequired("cases")
	rootCmd.AddCommand(testCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := readSource(args[0], runLanguage)
	if err != nil {
		return err
	}

	prog := src.program()
	client := execution.NewClient(cfg.Execution.URL, cfg.Execution.Timeout)
	started := time.Now()
	res, err := client.Execute(cmd.Context(), execution.Request{
		Source:   prog.Source,
		Language: prog.Language,
		Version:  prog.Version,
		FileName: prog.FileName,
		Stdin:    runStdin,
	})
	fmt.Println(strings.TrimRight(execution.Display(res, err), "\n"))
	if err != nil {
		return fmt.Errorf("running %s: %w", src.Path, err)
	}
	fmt.Fprintf(os.Stderr, "\n%s in %s\n", src.Language.Name, humanize.SIWithDigits(time.Since(started).Seconds(), 2, "s"))
	return nil
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := readSource(args[0], runLanguage)
	if err != nil {
		return err
	}
	cases, err := loadCases(testCases)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	h := harness.New(execution.NewClient(cfg.Execution.URL, cfg.Execution.Timeout), pslog.Ctx(ctx))
	results, err := h.Run(ctx, src.program(), cases, func(r harness.Result) {
		pslog.Ctx(ctx).Debug("test case finished", "case", r.Index, "passed", r.Passed)
	})
	printResults(cases, results)
	if err != nil {
		return err
	}
	rep := harness.Summarize(results)
	if !rep.AllPassed() {
		return fmt.Errorf("%d of %d test cases failed", rep.Failed, rep.Total)
	}
	return nil
}

func printResults(cases []harness.TestCase, results []harness.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tRESULT\tINPUT\tEXPECTED\tACTUAL")
	for _, r := range results {
		verdict := "pass"
		if !r.Passed {
			verdict = "FAIL"
			if r.Failure != harness.FailureMismatch {
				verdict += " (" + string(r.Failure) + ")"
			}
		}
		name := fmt.Sprintf("#%d", r.Index+1)
		if d := cases[r.Index].Description; d != "" {
			name += " " + d
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, verdict, oneLine(r.Input), oneLine(r.Expected), oneLine(r.Actual))
	}
	w.Flush()

	rep := harness.Summarize(results)
	fmt.Printf("\n%d/%d passed\n", rep.Passed, rep.Total)
	for _, r := range results {
		if r.Detail != "" && !r.Passed {
			fmt.Fprintf(os.Stderr, "\ncase #%d: %s\n", r.Index+1, strings.TrimSpace(r.Detail))
		}
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", `\n`)
	if len(s) > 30 {
		s = s[:27] + "..."
	}
	return s
}
