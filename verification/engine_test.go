package verification

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-kyc-verifier/audit"
	"go-kyc-verifier/models"
	"go-kyc-verifier/profile"
	"go-kyc-verifier/storage"
)

const sampleText = "ИВАНОВ ИВАН ИВАНОВИЧ\n12.05.1990\n4512 123456\nМУЖ\nУФМС РОССИИ ПО Г. МОСКВЕ"

type fakeOCR struct {
	result *models.OcrResult
	err    error
}

func (f *fakeOCR) DetectText(ctx context.Context, image []byte) (*models.OcrResult, error) {
	return f.result, f.err
}

type fakeFaces struct {
	detected   []models.DetectedFace
	detectErr  error
	comparison *models.FaceComparisonResult
	matchErr   error
	matchCalls int
}

func (f *fakeFaces) DetectFaces(ctx context.Context, image []byte) ([]models.DetectedFace, error) {
	return f.detected, f.detectErr
}

func (f *fakeFaces) MatchFaces(ctx context.Context, source, target []byte, threshold float64) (*models.FaceComparisonResult, error) {
	f.matchCalls++
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	return f.comparison, nil
}

type fakeExtractor struct {
	extraction *models.TextExtraction
	err        error
}

func (f *fakeExtractor) Extract(ctx context.Context, rawText string) (*models.TextExtraction, error) {
	return f.extraction, f.err
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func twoFaces() []models.DetectedFace {
	return []models.DetectedFace{
		{BoundingBox: models.BoundingBox{X: 5, Y: 5, Width: 50, Height: 50}, Confidence: 0.99},
		{BoundingBox: models.BoundingBox{X: 70, Y: 10, Width: 20, Height: 20}, Confidence: 0.95},
	}
}

type testEnv struct {
	engine   *Engine
	profiles *profile.MemoryStore
	blobs    *storage.MemoryStore
	faces    *fakeFaces
	journal  *audit.MemoryJournal
	imageRef string
}

func newTestEnv(t *testing.T, deps Deps) *testEnv {
	t.Helper()
	env := &testEnv{
		profiles: profile.NewMemoryStore(),
		blobs:    storage.NewMemoryStore(),
		journal:  audit.NewMemoryJournal(),
		imageRef: "img-1",
	}
	env.profiles.Put(&profile.Profile{Ref: "u-1", FullName: "Иванов Иван Иванович", Birthday: "12.05.1990"})
	env.blobs.PutWithRef("img-1", testImage(t), storage.Meta{ContentType: "image/jpeg"})

	if deps.OCR == nil {
		deps.OCR = &fakeOCR{result: &models.OcrResult{FullText: sampleText, Confidence: 0.9}}
	}
	if deps.Faces == nil {
		deps.Faces = &fakeFaces{
			detected:   twoFaces(),
			comparison: &models.FaceComparisonResult{Match: true, Similarity: 0.95, Confidence: 0.9},
		}
	}
	env.faces = deps.Faces.(*fakeFaces)
	deps.Blobs = env.blobs
	deps.Profiles = env.profiles
	deps.Journal = env.journal
	env.engine = NewEngine(deps)
	return env
}

func TestVerifySuccess(t *testing.T) {
	env := newTestEnv(t, Deps{})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.True(t, result.Verified)
	assert.False(t, result.Details.HighRisk)
	assert.Empty(t, result.Details.ReasonCodes)
	assert.True(t, result.FaceMatch.Match)
	assert.True(t, result.NameMatch.Match)
	assert.InDelta(t, 1.0, result.NameMatch.Similarity, 1e-9)
	assert.Equal(t, 2, result.Details.FacesDetectedInSelfie)
	assert.Equal(t, 1, result.Details.FacesDetectedInPassport)
	assert.True(t, result.Details.PassportNameExtracted)
	assert.Equal(t, sampleText, result.Details.PassportRawText)
	assert.Equal(t, 1, env.faces.matchCalls)
}

func TestVerifyLowConfidenceMatch(t *testing.T) {
	env := newTestEnv(t, Deps{Faces: &fakeFaces{
		detected:   twoFaces(),
		comparison: &models.FaceComparisonResult{Match: true, Similarity: 0.82, Confidence: 0.6},
	}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.False(t, result.Verified)
	assert.True(t, result.Details.HighRisk)
	assert.Contains(t, result.Details.ReasonCodes, ReasonLowConfidence)
	assert.True(t, result.FaceMatch.Match)
}

func TestVerifyFaceCountRules(t *testing.T) {
	face := twoFaces()[0]
	tests := []struct {
		name     string
		detected []models.DetectedFace
		code     ReasonCode
	}{
		{"no faces", nil, ReasonNoFaces},
		{"one face", []models.DetectedFace{face}, ReasonTooFewFaces},
		{"three faces", []models.DetectedFace{face, face, face}, ReasonTooManyFaces},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Deps{Faces: &fakeFaces{detected: tt.detected}})
			result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

			assert.False(t, result.Verified)
			assert.Contains(t, result.Details.ReasonCodes, tt.code)
			assert.False(t, result.FaceMatch.Match)
			assert.Zero(t, env.faces.matchCalls, "no comparison call for ineligible face counts")
			assert.Equal(t, len(tt.detected), result.Details.FacesDetectedInSelfie)
			assert.Zero(t, result.Details.FacesDetectedInPassport)
		})
	}
}

func TestVerifyFaceMismatch(t *testing.T) {
	env := newTestEnv(t, Deps{Faces: &fakeFaces{
		detected:   twoFaces(),
		comparison: &models.FaceComparisonResult{Match: false, Similarity: 0.4, Confidence: 0.9},
	}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.False(t, result.Verified)
	assert.True(t, result.Details.HighRisk)
	assert.Contains(t, result.Details.ReasonCodes, ReasonFaceMismatch)
}

func TestVerifyComparisonFailureDegrades(t *testing.T) {
	env := newTestEnv(t, Deps{Faces: &fakeFaces{
		detected: twoFaces(),
		matchErr: errors.New("provider unavailable"),
	}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.False(t, result.Verified)
	assert.True(t, result.Details.HighRisk)
	assert.Contains(t, result.Details.ReasonCodes, ReasonLowConfidence)
	assert.True(t, result.FaceMatch.Match)
	assert.InDelta(t, 0.9, result.FaceMatch.Similarity, 1e-9)
	assert.NotEmpty(t, result.Details.Errors)
}

func TestVerifyNameMismatch(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.profiles.Put(&profile.Profile{Ref: "u-2", FullName: "Сидоров Семен Семенович"})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-2")

	assert.False(t, result.Verified)
	assert.True(t, result.Details.HighRisk)
	assert.Contains(t, result.Details.ReasonCodes, ReasonNameMismatch)
	assert.False(t, result.NameMatch.Match)
}

func TestVerifyProfileWithoutName(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.profiles.Put(&profile.Profile{Ref: "u-3"})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-3")

	assert.False(t, result.Verified)
	assert.True(t, result.Details.HighRisk)
	assert.Contains(t, result.Details.ReasonCodes, ReasonNameMismatch)
	assert.Zero(t, result.NameMatch.Similarity)
}

func TestVerifyUnreadableText(t *testing.T) {
	env := newTestEnv(t, Deps{OCR: &fakeOCR{result: &models.OcrResult{FullText: "???"}}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.False(t, result.Verified)
	assert.Contains(t, result.Details.ReasonCodes, ReasonPassportNotReadable)
	assert.False(t, result.Details.PassportNameExtracted)
}

func TestVerifyLongUnstructuredTextIsReadable(t *testing.T) {
	long := "это просто длинный фрагмент текста без структурированных полей, но его достаточно много"
	env := newTestEnv(t, Deps{OCR: &fakeOCR{result: &models.OcrResult{FullText: long}}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.NotContains(t, result.Details.ReasonCodes, ReasonPassportNotReadable)
}

func TestVerifyOcrFailure(t *testing.T) {
	env := newTestEnv(t, Deps{OCR: &fakeOCR{err: errors.New("ocr down")}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.False(t, result.Verified)
	assert.Contains(t, result.Details.ReasonCodes, ReasonPassportNotReadable)
	assert.NotEmpty(t, result.Details.Errors)
}

func TestVerifyExtractionPreferredOverParser(t *testing.T) {
	env := newTestEnv(t, Deps{Extractor: &fakeExtractor{
		extraction: &models.TextExtraction{FullName: "ИВАНОВ ИВАН ИВАНОВИЧ", Birthday: "13.05.1990"},
	}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.Equal(t, "ИВАНОВ ИВАН ИВАНОВИЧ", result.NameMatch.PassportName)
	require.NotNil(t, result.Details.PassportProfile)
	assert.Equal(t, "13.05.1990", result.Details.PassportProfile.Birthday)
}

func TestVerifyExtractionFailureKeepsParserOutput(t *testing.T) {
	env := newTestEnv(t, Deps{Extractor: &fakeExtractor{err: errors.New("llm down")}})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	assert.True(t, result.Verified, "advisory service failure must not block verification")
	assert.Equal(t, "ИВАНОВ ИВАН ИВАНОВИЧ", result.NameMatch.PassportName)
	assert.NotEmpty(t, result.Details.Errors)
}

func TestVerifyBirthdayOverwrite(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.profiles.Put(&profile.Profile{
		Ref:      "u-4",
		FullName: "Иванов Иван Иванович",
		Birthday: "01.01.1980",
		Data:     map[string]string{"passportSeries": "0000"},
	})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-4")
	require.True(t, result.Verified)

	updated, err := env.profiles.FindByRef(context.Background(), "u-4")
	require.NoError(t, err)
	assert.Equal(t, "12.05.1990", updated.Birthday, "differing birthday is overwritten")
	assert.Equal(t, "0000", updated.Data["passportSeries"], "existing fields are never clobbered")
	assert.Equal(t, "123456", updated.Data["passportNumber"], "absent fields are filled in")
}

func TestVerifyInfrastructureFailures(t *testing.T) {
	env := newTestEnv(t, Deps{})

	result := env.engine.Verify(context.Background(), env.imageRef, "missing-profile")
	assert.False(t, result.Verified)
	assert.NotEmpty(t, result.Details.Errors)

	result = env.engine.Verify(context.Background(), "missing-image", "u-1")
	assert.False(t, result.Verified)
	assert.NotEmpty(t, result.Details.Errors)
}

func TestVerifyEmitsAuditEvents(t *testing.T) {
	env := newTestEnv(t, Deps{})
	env.engine.Verify(context.Background(), env.imageRef, "u-1")

	events := env.journal.Events()
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventVerificationStarted, events[0].Type)
	assert.Equal(t, audit.EventVerificationFinished, events[1].Type)
	assert.Equal(t, true, events[1].Payload["verified"])
}

func TestVerifiedImpliesCleanResult(t *testing.T) {
	env := newTestEnv(t, Deps{})
	result := env.engine.Verify(context.Background(), env.imageRef, "u-1")

	require.True(t, result.Verified)
	assert.False(t, result.Details.HighRisk)
	for _, code := range []ReasonCode{ReasonFaceMismatch, ReasonNameMismatch, ReasonPossibleForeignPassport} {
		assert.NotContains(t, result.Details.ReasonCodes, code)
	}
}
