package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"DHTSpectra/internal/config"
)

// Analyzer summarizes monitoring data through an OpenAI-compatible API. It is
// optional: the daemon runs fine without an API key configured.
type Analyzer struct {
	cfg    *config.AIConfig
	client *openai.Client
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(cfg *config.AIConfig) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is not configured")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)
	return &Analyzer{cfg: cfg, client: client}, nil
}

// AnalyzeTraffic analyzes the input text and returns a summary or insights.
func (a *Analyzer) AnalyzeTraffic(ctx context.Context, input string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a senior network operations analyst. "+
			"Please analyze the following report from a DHT bootstrap-node monitoring daemon "+
			"(per-window peer counts, traffic volume, direction split, peer churn, host metrics). "+
			"Provide a concise assessment of node health, any anomalies, and recommended next steps. "+
			"The output should be clear and actionable.\n\n"+
			"--- Monitoring Data ---\n%s\n--- End of Monitoring Data ---", input,
	)

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("AI request timeout: %w", err)
		}
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("AI request canceled by client: %w", err)
		}
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
