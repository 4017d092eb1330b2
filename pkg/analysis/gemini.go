package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"dealdesk/pkg/store"
)

const defaultGeminiModel = "gemini-2.0-flash-001"

// GeminiScorer scores messages with the Gemini API and asks it for a
// short assistant suggestion alongside the sentiment.
type GeminiScorer struct {
	model *genai.GenerativeModel
	// historyLimit caps how many prior messages are included in the
	// prompt.
	historyLimit int
}

// NewGeminiScorer builds a scorer against the given API key. Model may
// be empty to use the default.
func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	return &GeminiScorer{model: m, historyLimit: 10}, nil
}

type geminiReply struct {
	Sentiment  float64 `json:"sentiment"`
	Suggestion string  `json:"suggestion"`
	Reasoning  string  `json:"reasoning"`
}

// Score implements Scorer without conversation context.
func (g *GeminiScorer) Score(ctx context.Context, text string) (*Result, error) {
	return g.score(ctx, text, nil)
}

// ScoreInContext includes recent conversation history from the
// negotiation in the prompt.
func (g *GeminiScorer) ScoreInContext(ctx context.Context, negID, text string) (*Result, error) {
	var history []string
	msgs, err := store.ListMessages(negID, g.historyLimit, "")
	if err == nil {
		for _, m := range msgs {
			history = append(history, fmt.Sprintf("- %s: %s", m.Sender, m.Body))
		}
	}
	return g.score(ctx, text, history)
}

func (g *GeminiScorer) score(ctx context.Context, text string, history []string) (*Result, error) {
	historyText := ""
	if len(history) > 0 {
		historyText = "\n**Recent Conversation:**\n" + strings.Join(history, "\n") + "\n"
	}

	prompt := fmt.Sprintf(`
You are an assistant embedded in a music-industry contract negotiation tool.
Analyze the tone of the latest message and, when useful, suggest a short
constructive next step for the parties.
%s
**Latest Message:**
"%s"

**Output Format:**
Respond in JSON only.

JSON Schema:
{
  "sentiment": 0.0,   // float in [-1, 1]; -1 hostile, 0 neutral, 1 positive
  "suggestion": "",   // one or two sentences of negotiation advice, or "" if nothing useful to add
  "reasoning": ""     // brief justification of the score
}
`, historyText, text)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}
	part := resp.Candidates[0].Content.Parts[0]
	txt, ok := part.(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", part)
	}
	var parsed geminiReply
	if err := json.Unmarshal([]byte(txt), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gemini reply: %w", err)
	}
	if parsed.Sentiment > 1 {
		parsed.Sentiment = 1
	}
	if parsed.Sentiment < -1 {
		parsed.Sentiment = -1
	}
	return &Result{Sentiment: parsed.Sentiment, Suggestion: parsed.Suggestion}, nil
}
