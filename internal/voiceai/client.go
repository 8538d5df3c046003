package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, mimeType string) (string, error)
}

// ChallengeIntent is the structured draft extracted from a transcript.
type ChallengeIntent struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	ChallengeType string  `json:"challenge_type"`
	Goal          string  `json:"goal"`
	TargetValue   int64   `json:"target_value"`
	Unit          string  `json:"unit"`
	DurationDays  int     `json:"duration_days"`
	ProofType     string  `json:"proof_type"`
	Confidence    float64 `json:"confidence"`
}

// ChallengeParser extracts a challenge intent from free-form text.
type ChallengeParser interface {
	ParseChallenge(ctx context.Context, transcript string) (*ChallengeIntent, error)
}

// Client talks to an OpenAI-compatible API for both transcription and
// intent parsing.
type Client struct {
	httpClient         *http.Client
	baseURL            string
	apiKey             string
	transcriptionModel string
	parsingModel       string
}

// NewClient builds a Client. An empty apiKey yields a client whose
// calls all fail; callers should surface that as service unavailability.
func NewClient(baseURL, apiKey, transcriptionModel, parsingModel string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:            baseURL,
		apiKey:             apiKey,
		transcriptionModel: transcriptionModel,
		parsingModel:       parsingModel,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends audio to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename, mimeType string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("voice api not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	if err := writer.WriteField("model", c.transcriptionModel); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out transcriptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return out.Text, nil
}

const parsePrompt = `Extract a habit challenge from the user's voice note.
Respond with a single JSON object with the keys: title, description,
challenge_type (one of: todo, streak, quantified), goal, target_value
(integer), unit, duration_days (integer), proof_type (one of: SELF,
PHOTO, PEER), confidence (0 to 1).
If the note does not describe a challenge, set confidence to 0.`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ParseChallenge sends the transcript to the chat endpoint and decodes
// the structured intent.
func (c *Client) ParseChallenge(ctx context.Context, transcript string) (*ChallengeIntent, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("voice api not configured")
	}

	payload := chatRequest{
		Model: c.parsingModel,
		Messages: []chatMessage{
			{Role: "system", Content: parsePrompt},
			{Role: "user", Content: transcript},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parsing request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("parsing API returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("empty response from parsing API")
	}

	var intent ChallengeIntent
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent: %w", err)
	}
	return &intent, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
