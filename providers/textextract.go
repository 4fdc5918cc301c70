package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go-kyc-verifier/models"
)

const extractionPrompt = "Extract the document holder's full name and date of birth " +
	"from the following passport OCR text. Respond with a JSON object " +
	"{\"fullName\": string|null, \"birthday\": \"DD.MM.YYYY\"|null} and nothing else.\n\n"

// ExtractClient asks an OpenAI-compatible chat completion API to pull
// structured fields out of free-form OCR text. The service is advisory:
// callers must tolerate failures and null fields.
type ExtractClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewExtractClient creates a text-extraction client for an
// OpenAI-compatible endpoint.
func NewExtractClient(baseURL, apiKey, model string) *ExtractClient {
	return &ExtractClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract returns the model's best-effort guess at the holder's full
// name and birthday. Fields the model could not determine are empty.
func (c *ExtractClient) Extract(ctx context.Context, rawText string) (*models.TextExtraction, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: extractionPrompt + rawText},
		},
		Temperature: 0,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute extraction request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("extraction service returned no choices")
	}

	extraction, err := parseExtractionContent(decoded.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	slog.Debug("Text extraction completed", "has_name", extraction.FullName != "", "has_birthday", extraction.Birthday != "")
	return extraction, nil
}

// parseExtractionContent tolerates the model wrapping its JSON answer
// in markdown code fences.
func parseExtractionContent(content string) (*models.TextExtraction, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var fields struct {
		FullName *string `json:"fullName"`
		Birthday *string `json:"birthday"`
	}
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("extraction service returned malformed JSON: %w", err)
	}

	extraction := &models.TextExtraction{}
	if fields.FullName != nil {
		extraction.FullName = strings.TrimSpace(*fields.FullName)
	}
	if fields.Birthday != nil {
		extraction.Birthday = strings.TrimSpace(*fields.Birthday)
	}
	return extraction, nil
}
