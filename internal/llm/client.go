package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cognicore/docxref/pkg/docxref/intent"
	"github.com/cognicore/docxref/pkg/docxref/report"
)

// GreetingReply is returned for greetings without calling the model.
const GreetingReply = "Hello! Upload a few files or ask a question and I will look for values they have in common."

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const (
	groundedSystem = "You are a data analyst. Answer using ONLY the correlation report provided. Name the files and values you rely on."
	compareSystem  = "You are a data analyst comparing business files. Use ONLY the correlation report provided. Describe shared values, the most connected file and any master table joins."
	generalSystem  = "You are a helpful assistant for retail business data questions. Be concise."
)

// Answer routes a user message by intent. Greetings get a canned reply,
// file questions and comparisons are grounded in rep, anything else is a
// plain chat turn. A nil rep downgrades grounded intents to plain chat.
func (c *Client) Answer(ctx context.Context, in intent.Intent, question string, rep *report.Report) (string, error) {
	switch {
	case in == intent.Greeting:
		return GreetingReply, nil
	case in.NeedsReport() && rep != nil:
		system := groundedSystem
		if in == intent.ComparisonRequest {
			system = compareSystem
		}
		return c.Chat(ctx, system, formatPrompt(question, *rep))
	default:
		return c.Chat(ctx, generalSystem, question)
	}
}

// Summarize builds a grounded answer from a correlation report.
func (c *Client) Summarize(ctx context.Context, question string, rep report.Report) (string, error) {
	return c.Chat(ctx, groundedSystem, formatPrompt(question, rep))
}

func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	if c.BaseURL == "" || c.Model == "" {
		return "", fmt.Errorf("llm: base URL and model required")
	}
	messages := []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}}
	payload, err := c.send(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) send(ctx context.Context, messages []chatMessage) (*chatResponse, error) {
	reqBody, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("llm: status %d", resp.StatusCode)
		}
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("llm error: %s", payload.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm: status %d", resp.StatusCode)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func formatPrompt(question string, rep report.Report) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Question: %s\n\nCorrelation report:\n", question)
	_ = rep.Render(&buf)
	fmt.Fprintf(&buf, "\nRespond with a concise answer using this report and name the files explicitly.\n")
	return buf.String()
}
