package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go-kyc-verifier/models"
)

// FaceClient talks to a face analysis API offering detection and
// pairwise matching.
type FaceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFaceClient creates a new face API client.
func NewFaceClient(baseURL string) *FaceClient {
	return &FaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Faces []struct {
		X          int     `json:"x"`
		Y          int     `json:"y"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		Confidence float64 `json:"confidence"`
	} `json:"faces"`
}

// DetectFaces returns the faces found in the image, in discovery order.
func (c *FaceClient) DetectFaces(ctx context.Context, image []byte) ([]models.DetectedFace, error) {
	payload := detectRequest{Image: base64.StdEncoding.EncodeToString(image)}

	var decoded detectResponse
	if err := c.postJSON(ctx, "/api/detect", payload, &decoded); err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	faces := make([]models.DetectedFace, 0, len(decoded.Faces))
	for _, f := range decoded.Faces {
		faces = append(faces, models.DetectedFace{
			BoundingBox: models.BoundingBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			Confidence:  f.Confidence,
		})
	}

	slog.Debug("Face detection completed", "face_count", len(faces))
	return faces, nil
}

type matchRequest struct {
	Images []matchImage `json:"images"`
	// Threshold at which the service reports a match.
	Threshold float64 `json:"threshold"`
}

type matchImage struct {
	Data  string `json:"data"`
	Index int    `json:"index"`
}

type matchResponse struct {
	Results []struct {
		Similarity float64 `json:"similarity"`
		Confidence float64 `json:"confidence"`
	} `json:"results"`
	Detections []struct {
		Faces int `json:"faces"`
	} `json:"detections"`
}

// MatchFaces compares two face images and reports whether they depict
// the same person relative to the given similarity threshold.
func (c *FaceClient) MatchFaces(ctx context.Context, source, target []byte, threshold float64) (*models.FaceComparisonResult, error) {
	payload := matchRequest{
		Images: []matchImage{
			{Data: base64.StdEncoding.EncodeToString(source), Index: 1},
			{Data: base64.StdEncoding.EncodeToString(target), Index: 2},
		},
		Threshold: threshold,
	}

	var decoded matchResponse
	if err := c.postJSON(ctx, "/api/match", payload, &decoded); err != nil {
		return nil, fmt.Errorf("face match failed: %w", err)
	}

	result := &models.FaceComparisonResult{}
	if len(decoded.Results) > 0 {
		result.Similarity = decoded.Results[0].Similarity
		result.Confidence = decoded.Results[0].Confidence
	}
	result.Match = result.Similarity >= threshold
	if len(decoded.Detections) > 0 {
		result.SourceFaceCount = decoded.Detections[0].Faces
	}
	if len(decoded.Detections) > 1 {
		result.TargetFaceCount = decoded.Detections[1].Faces
	}

	slog.Info("Face match completed", "similarity", result.Similarity, "matched", result.Match)
	return result, nil
}

// HealthCheck verifies the face API service is available.
func (c *FaceClient) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.httpClient, fmt.Sprintf("%s/api/healthz", c.baseURL))
}

func (c *FaceClient) postJSON(ctx context.Context, path string, payload, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
