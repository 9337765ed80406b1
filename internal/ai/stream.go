package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// AnalyzeStream processes a prompt in a stream, forwarding each chunk to
// sendChunk as it arrives. Used by the API's analyze endpoint so large
// answers reach the caller incrementally.
func (a *Analyzer) AnalyzeStream(ctx context.Context, prompt string, sendChunk func(string) error) error {
	req := openai.ChatCompletionRequest{
		Model:     a.cfg.Model,
		MaxTokens: 2048,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Stream: true,
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}

		chunk := response.Choices[0].Delta.Content
		if err := sendChunk(chunk); err != nil {
			// Typically a disconnected client.
			return fmt.Errorf("failed to send chunk to client: %w", err)
		}
	}
}
