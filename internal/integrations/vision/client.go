/**
 * @description
 * Brand-identification client over an OpenAI-compatible chat-completions API.
 * Sends a captured product photo and asks which supported stock ticker the
 * brand in frame maps to.
 *
 * @dependencies
 * - net/http
 * - encoding/json
 * - backend/internal/config
 */

package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/snapnbuy/backend/internal/config"
)

const requestTimeout = 60 * time.Second

// SupportedTickers is the closed set of brands the scanner recognizes.
var SupportedTickers = map[string]string{
	"TSLA": "Tesla",
	"AMZN": "Amazon",
	"PLTR": "Palantir",
	"NFLX": "Netflix",
	"AMD":  "AMD",
}

var ErrInvalidImage = errors.New("invalid image data URL")

var dataURLPattern = regexp.MustCompile(`^data:(image/\w+);base64,(.+)$`)

const systemPrompt = `You are a brand identification AI. Analyze the image and determine if it contains any product, logo, or branding related to these companies: Tesla (TSLA), Amazon (AMZN), Palantir (PLTR), Netflix (NFLX), or AMD (AMD).

Respond ONLY with a JSON object in this exact format:
- If a brand is found: {"ticker": "TSLA", "confidence": 0.95}
- If no supported brand is found: {"ticker": null, "confidence": 0}

Rules:
- Only return tickers from this list: TSLA, AMZN, PLTR, NFLX, AMD
- confidence should be between 0 and 1`

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.Services.VisionAPIKey,
		baseURL: cfg.Services.VisionBaseURL,
		model:   cfg.Services.VisionModel,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// BrandResult is the classifier's answer. Ticker is empty when no
// supported brand was found.
type BrandResult struct {
	Ticker     string  `json:"ticker"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []contentPart for user
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// IdentifyBrand classifies a base64 data-URL image into a supported ticker.
func (c *Client) IdentifyBrand(ctx context.Context, imageDataURL string) (*BrandResult, error) {
	match := dataURLPattern.FindStringSubmatch(imageDataURL)
	if match == nil {
		return nil, ErrInvalidImage
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "What brand or company is shown in this image? Identify the stock ticker."},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL}},
			}},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision api error: status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("vision response decode failed: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("vision api returned no choices")
	}

	return parseBrandResult(chat.Choices[0].Message.Content)
}

// parseBrandResult extracts the {ticker, confidence} JSON from the model's
// reply, tolerating markdown fences around it.
func parseBrandResult(content string) (*BrandResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw struct {
		Ticker     *string `json:"ticker"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("vision reply parse failed: %w", err)
	}

	result := &BrandResult{Confidence: raw.Confidence}
	if raw.Ticker != nil {
		ticker := strings.ToUpper(strings.TrimSpace(*raw.Ticker))
		if name, ok := SupportedTickers[ticker]; ok {
			result.Ticker = ticker
			result.Name = name
		}
	}
	return result, nil
}
