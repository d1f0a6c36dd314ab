// Package slack posts test-run reports to a Slack channel.
package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/logx"
	"github.com/jxucoder/codegrounds/internal/playground"
)

// Notifier posts a message for every finished test run.
type Notifier struct {
	api     *slack.Client
	channel string
	log     pslog.Logger
}

// NewNotifier creates a notifier posting to channel with the given bot token.
// Extra options are passed to the Slack client.
func NewNotifier(botToken, channel string, log pslog.Logger, opts ...slack.Option) *Notifier {
	return &Notifier{
		api:     slack.New(botToken, opts...),
		channel: channel,
		log:     logx.OrDiscard(log),
	}
}

// NotifyTestsDone posts the run's report as a Block Kit message, falling back
// to plain text.
func (n *Notifier) NotifyTestsDone(ctx context.Context, summary playground.RunSummary) error {
	headerText := slack.NewTextBlockObject(slack.MarkdownType, reportText(summary), false, false)
	headerSection := slack.NewSectionBlock(headerText, nil, nil)

	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("Session `%s` | Language `%s`", summary.SessionID, summary.Language),
			false, false),
	}
	contextBlock := slack.NewContextBlock("", contextElements...)

	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(headerSection, slack.NewDividerBlock(), contextBlock),
	)
	if err == nil {
		return nil
	}
	n.log.Warn("slack block message failed, retrying as text", "err", err)
	_, _, err = n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(reportText(summary), false))
	if err != nil {
		return fmt.Errorf("posting slack message: %w", err)
	}
	return nil
}

func reportText(summary playground.RunSummary) string {
	rep := summary.Report
	icon := ":x:"
	if rep.AllPassed() {
		icon = ":white_check_mark:"
	}
	text := fmt.Sprintf("%s *%d/%d tests passed*", icon, rep.Passed, rep.Total)
	if summary.ProblemStatement != "" {
		text += "\n" + truncate(summary.ProblemStatement, 120)
	}
	return text
}

// truncate shortens s to at most maxLen runes, ending in "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
