package assess

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Narrator turns a scorecard into advisor-facing prose.
type Narrator interface {
	Narrate(ctx context.Context, clientName string, sc Scorecard) (string, error)
}

const narrativeSystem = `You are a retirement plan consultant writing for a financial
advisor. Given a 401(k) plan design scorecard as JSON, write a short assessment:
two or three paragraphs, no headings, no bullet lists. Lead with the overall
posture, then the most impactful improvement. Do not invent plan details that
are not in the scorecard.`

// claudeNarrator narrates scorecards with the Anthropic API.
type claudeNarrator struct {
	client sdk.Client
	model  string
}

// NewClaudeNarrator creates a Narrator backed by the Anthropic API.
func NewClaudeNarrator(apiKey, model string) Narrator {
	return &claudeNarrator{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (n *claudeNarrator) Narrate(ctx context.Context, clientName string, sc Scorecard) (string, error) {
	payload, err := json.Marshal(sc)
	if err != nil {
		return "", eris.Wrap(err, "assess: marshal scorecard")
	}

	msg, err := n.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(n.model),
		MaxTokens: 1024,
		System: []sdk.TextBlockParam{
			{Text: narrativeSystem},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(
				"Client: " + clientName + "\nScorecard:\n" + string(payload),
			)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "assess: narrate scorecard")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	zap.L().Debug("narrative generated",
		zap.String("client_name", clientName),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return strings.TrimSpace(b.String()), nil
}
