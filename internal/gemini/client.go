// Package gemini is a REST client for Gemini image editing. It uses direct
// HTTP calls rather than the Go SDK because image output (responseModalities)
// is only reachable through the generateContent REST surface.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h4xlabs/h4x-edit/internal/edit"
)

// defaultBaseURL is the Gemini REST API base URL.
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini image model to apply a free-text edit instruction
// to an image. It implements edit.ImageEditor.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the image model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a Gemini image-editing client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   ImageModelName(),
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // image generation can take 10-30s
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- REST API request/response types ---

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *blobData `json:"inlineData,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type blobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// EditImage sends the image with the instruction to the Gemini image model
// and returns the edited image bytes. One outbound HTTP call, no retries.
func (c *Client) EditImage(ctx context.Context, imageData []byte, imageMIMEType string, instruction string) (*edit.Result, error) {
	startTime := time.Now()
	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(imageData)).
		Str("image_mime", imageMIMEType).
		Msg("Sending image to Gemini for editing")

	req := generateRequest{
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{
						InlineData: &blobData{
							MIMEType: imageMIMEType,
							Data:     base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{Text: instruction},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini image editing API returned error")
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncateString(string(respBody), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %d)", parsed.Error.Message, parsed.Error.Code)
	}

	result := &edit.Result{}
	var text string
	for _, cand := range parsed.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil {
				decoded, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				result.Data = decoded
				result.MIMEType = p.InlineData.MIMEType
			}
			if p.Text != "" {
				text += p.Text
			}
		}
	}

	if result.Data == nil {
		return nil, fmt.Errorf("no image returned in response (text: %s)", truncateString(text, 200))
	}

	log.Info().
		Int("output_bytes", len(result.Data)).
		Str("output_mime", result.MIMEType).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini image editing complete")

	return result, nil
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
