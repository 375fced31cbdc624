package ai

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiGenerator streams completions from the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create genai client")
	}
	return &GeminiGenerator{client: client}, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func (g *GeminiGenerator) Stream(ctx context.Context, req *GenerateRequest) (<-chan string, <-chan error) {
	contentChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errChan)

		model := g.client.GenerativeModel(req.ModelID)
		if req.System != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(req.System)},
			}
		}

		history, last, err := convertHistory(req.Messages)
		if err != nil {
			errChan <- err
			return
		}

		session := model.StartChat()
		session.History = history

		iter := session.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errChan <- errors.Wrap(err, "gemini stream failed")
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				txt, ok := part.(genai.Text)
				if !ok || len(txt) == 0 {
					continue
				}
				select {
				case contentChan <- string(txt):
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}
		}
	}()

	return contentChan, errChan
}

// convertHistory maps messages to genai content, splitting off the final
// user turn that drives the stream. Gemini uses "model" for assistant
// turns; system text travels separately as the system instruction.
func convertHistory(messages []Message) ([]*genai.Content, *genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	if len(contents) == 0 {
		return nil, nil, errors.New("history is empty")
	}
	last := contents[len(contents)-1]
	if last.Role != "user" {
		return nil, nil, errors.New("last message in history is not from the user")
	}
	return contents[:len(contents)-1], last, nil
}
