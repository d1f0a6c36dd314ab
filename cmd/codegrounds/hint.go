package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/hint"
)

var (
	hintProblem  string
	hintLanguage string
)

var hintCmd = &cobra.Command{
	Use:   "hint FILE",
	Short: "Stream an AI hint for a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runHint,
}

func init() {
	hintCmd.Flags().StringVarP(&hintProblem, "problem", "p", "", "problem statement the code is solving")
	hintCmd.Flags().StringVarP(&hintLanguage, "language", "l", "", "language id (default: detected from the extension)")
	hintCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(hintCmd)
}

// tokenPrinter writes only the text a view adds over the previous one.
type tokenPrinter struct {
	printed int
}

func (p *tokenPrinter) observe(v hint.View) {
	if len(v.Text) > p.printed {
		fmt.Print(v.Text[p.printed:])
		p.printed = len(v.Text)
	}
}

func runHint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := readSource(args[0], hintLanguage)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	printer := &tokenPrinter{}
	client := hint.NewClient(hint.NewHTTPService(cfg.AI.BaseURL, cfg.AI.Token), hint.Options{
		Timeout:  cfg.AI.Timeout,
		Logger:   pslog.Ctx(ctx),
		Observer: printer.observe,
	})
	defer client.Close()

	sess, err := client.Start(ctx, hint.Request{
		ProblemStatement: hintProblem,
		Code:             src.Code,
		Language:         src.Language.Name,
	})
	if err != nil {
		return err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	client.Close()
	if printer.printed > 0 && !strings.HasSuffix(sess.Text(), "\n") {
		fmt.Println()
	}
	if sess.State() == hint.StateFailed {
		fmt.Fprintln(os.Stderr, sess.Message())
		return fmt.Errorf("hint stream failed")
	}
	return nil
}
