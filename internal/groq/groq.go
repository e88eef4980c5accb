package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/lecturehub/backend/internal/errors"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	requestTimeout = 60 * time.Second

	transcriptionsPath  = "/audio/transcriptions"
	chatCompletionsPath = "/chat/completions"

	serviceName = "groq"
)

// Client provides access to the Groq OpenAI-compatible API: audio
// transcription and chat completions, both bearer-token authenticated.
type Client struct {
	httpClient         *http.Client
	baseURL            string
	apiKey             string
	transcriptionModel string
	chatModel          string
}

// ClientConfig holds the settings for a Groq API client.
type ClientConfig struct {
	BaseURL            string
	APIKey             string
	TranscriptionModel string
	ChatModel          string
}

// NewClient creates a new Groq API client.
func NewClient(cfg *ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL:            baseURL,
		apiKey:             cfg.APIKey,
		transcriptionModel: cfg.TranscriptionModel,
		chatModel:          cfg.ChatModel,
	}
}

// errorEnvelope is the error body the API returns alongside non-2xx statuses
// and, occasionally, inside 200 responses.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// transcriptionResponse is the raw transcription API response.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// chatResponse is the raw chat completion API response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe posts audio bytes to the transcription endpoint and returns the
// recognized text. Network failures, timeouts and 429/5xx statuses come back
// as retryable errors; an explicit API error body or a success payload with
// no text is permanent.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", apperrors.InternalError("failed to build transcription request").WithCause(err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", apperrors.StorageError("failed to read audio").WithCause(err)
	}
	if err := writer.WriteField("model", c.transcriptionModel); err != nil {
		return "", apperrors.InternalError("failed to build transcription request").WithCause(err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.InternalError("failed to build transcription request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcriptionsPath, &buf)
	if err != nil {
		return "", apperrors.InternalError("failed to build transcription request").WithCause(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", upstreamPermanent("invalid transcription payload").WithCause(err)
	}
	if parsed.Text == "" {
		return "", upstreamPermanent("no 'text' found in response")
	}

	return parsed.Text, nil
}

// ChatCompletion sends a single-turn user prompt and returns the assistant's
// reply content. A success payload without choices is treated as a permanent
// content error carrying the upstream error message.
func (c *Client) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.chatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperrors.InternalError("failed to build chat request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.InternalError("failed to build chat request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", upstreamPermanent("invalid chat completion payload").WithCause(err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", upstreamPermanent(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", upstreamPermanent("Sorry, data not available")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// do executes the request and maps transport and status failures onto the
// transient/permanent error taxonomy. It returns the raw body on 2xx.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() == context.DeadlineExceeded {
			return nil, apperrors.ExternalTimeout(serviceName).WithCause(err)
		}
		return nil, apperrors.UpstreamTransient(serviceName, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.UpstreamTransient(serviceName, "failed to read response").WithCause(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	message := upstreamMessage(body)
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	if apperrors.HTTPRetryableStatus(resp.StatusCode) {
		return nil, apperrors.UpstreamTransient(serviceName, message)
	}
	return nil, upstreamPermanent(message)
}

// upstreamMessage extracts the message from an API error envelope, if any.
func upstreamMessage(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Message
}

// upstreamPermanent builds a permanent upstream error that keeps the raw
// upstream message available to callers that persist it.
func upstreamPermanent(message string) *apperrors.AppError {
	return apperrors.UpstreamPermanent(serviceName, message).WithDetails(map[string]any{
		"upstream_message": message,
	})
}

// UpstreamMessage returns the raw upstream error message carried by err, or
// err's own message when none is attached.
func UpstreamMessage(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		if msg, ok := appErr.Details["upstream_message"].(string); ok && msg != "" {
			return msg
		}
		return appErr.Message
	}
	return err.Error()
}
