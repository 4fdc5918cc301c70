// Package providers contains HTTP clients for the external recognition
// services the pipeline depends on: OCR, face analysis and generative
// text extraction. Each client owns an http.Client with a bounded
// timeout; a timeout surfaces as a provider failure and the pipeline
// degrades instead of hanging.
package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"go-kyc-verifier/models"
)

const defaultTimeout = 30 * time.Second

// OcrClient talks to an OCR service that accepts a base64 image and
// returns the recognized text with a confidence score.
type OcrClient struct {
	baseURL    string
	apiKey     string
	locale     string
	httpClient *http.Client
}

// NewOcrClient creates an OCR client. locale hints the recognition
// language, e.g. "ru-RU".
func NewOcrClient(baseURL, apiKey, locale string) *OcrClient {
	return &OcrClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		locale:  locale,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type ocrRequest struct {
	Image  string `json:"image"`
	Locale string `json:"locale,omitempty"`
}

type ocrResponse struct {
	RawAnswerText string  `json:"raw_answer_text"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// DetectText runs OCR over the image bytes. A JSON response carries the
// text and confidence; a plain-text response body is accepted as the
// raw recognized text, decoded from Windows-1251 when the service
// declares that charset for Russian documents.
func (c *OcrClient) DetectText(ctx context.Context, image []byte) (*models.OcrResult, error) {
	payload := ocrRequest{
		Image:  base64.StdEncoding.EncodeToString(image),
		Locale: c.locale,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	url := fmt.Sprintf("%s/api/ocr", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute OCR request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		text, err := decodePlainText(body, params["charset"])
		if err != nil {
			return nil, err
		}
		slog.Debug("OCR returned plain text", "charset", params["charset"], "length", len(text))
		return &models.OcrResult{FullText: text}, nil
	}

	var decoded ocrResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	slog.Debug("OCR completed", "confidence", decoded.Confidence, "text_length", len(decoded.RawAnswerText))
	return &models.OcrResult{
		FullText:   decoded.RawAnswerText,
		Confidence: decoded.Confidence,
	}, nil
}

// HealthCheck verifies the OCR service is reachable.
func (c *OcrClient) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.httpClient, fmt.Sprintf("%s/api/healthz", c.baseURL))
}

// decodePlainText converts a plain-text body to UTF-8. Russian OCR
// backends still occasionally respond in Windows-1251.
func decodePlainText(body []byte, charset string) (string, error) {
	switch strings.ToLower(charset) {
	case "windows-1251", "cp1251":
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("failed to decode windows-1251 text: %w", err)
		}
		return string(decoded), nil
	default:
		if !utf8.Valid(body) {
			return "", fmt.Errorf("OCR response is not valid UTF-8 and no known charset was declared")
		}
		return string(body), nil
	}
}

func healthCheck(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, truncate(body))
	}
	return nil
}

// truncate keeps error logs readable for large response bodies.
func truncate(body []byte) string {
	const limit = 500
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}
