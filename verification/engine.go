// Package verification implements the passport-selfie decision engine:
// it orchestrates face detection, OCR and name matching into a single
// verified/not-verified verdict with reason codes.
package verification

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"go-kyc-verifier/audit"
	"go-kyc-verifier/document"
	"go-kyc-verifier/faces"
	"go-kyc-verifier/imaging"
	"go-kyc-verifier/metrics"
	"go-kyc-verifier/models"
	"go-kyc-verifier/names"
	"go-kyc-verifier/profile"
)

const (
	// CompareThreshold is passed to the face provider as the match
	// cut-off.
	CompareThreshold = 0.7

	// A match below these is accepted but flagged for manual review.
	acceptSimilarity = 0.85
	acceptConfidence = 0.7

	// Placeholder similarity reported by the degraded fallback when the
	// face provider is unavailable.
	degradedSimilarity = 0.9

	// Raw text longer than this counts as readable even when no
	// structured field was recognized.
	readableTextLength = 50
)

// BlobStore fetches stored image bytes.
type BlobStore interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// TextDetector runs OCR over an image.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) (*models.OcrResult, error)
}

// FaceAnalyzer detects and compares faces.
type FaceAnalyzer interface {
	DetectFaces(ctx context.Context, image []byte) ([]models.DetectedFace, error)
	MatchFaces(ctx context.Context, source, target []byte, threshold float64) (*models.FaceComparisonResult, error)
}

// TextExtractor refines raw OCR text into structured fields. Advisory;
// the engine works without it.
type TextExtractor interface {
	Extract(ctx context.Context, rawText string) (*models.TextExtraction, error)
}

// Deps wires the engine's collaborators. Extractor, Journal and
// Metrics may be nil.
type Deps struct {
	Blobs     BlobStore
	Profiles  profile.Store
	OCR       TextDetector
	Faces     FaceAnalyzer
	Extractor TextExtractor
	Journal   audit.Journal
	Metrics   *metrics.Metrics
}

// Engine runs the verification pipeline. Stateless; one instance
// serves concurrent calls.
type Engine struct {
	deps Deps
}

func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// Verify runs the full pipeline for one uploaded photo against one
// profile. It never returns an error for expected failure modes; even
// infrastructure failures come back as a not-verified result with the
// error recorded in Details.Errors.
func (e *Engine) Verify(ctx context.Context, imageRef, profileRef string) *Result {
	started := time.Now()
	logger := slog.With("profile_ref", profileRef, "image_ref", imageRef)
	logger.Debug("starting verification")

	e.journal(ctx, audit.NewEvent(audit.EventVerificationStarted, profileRef, map[string]any{
		"image_ref": imageRef,
	}))

	result := &Result{}

	person, err := e.deps.Profiles.FindByRef(ctx, profileRef)
	if err != nil {
		return e.failInfra(ctx, result, profileRef, started, "failed to load profile", err)
	}

	imageBytes, err := e.deps.Blobs.Get(ctx, imageRef)
	if err != nil {
		return e.failInfra(ctx, result, profileRef, started, "failed to load image", err)
	}

	// OCR and face detection read the same image and are independent,
	// so issue them concurrently. Provider errors degrade the pipeline
	// instead of aborting it.
	var (
		ocrResult *models.OcrResult
		ocrErr    error
		detected  []models.DetectedFace
		detectErr error
	)
	group := new(errgroup.Group)
	group.Go(func() error {
		ocrResult, ocrErr = e.deps.OCR.DetectText(ctx, imageBytes)
		return nil
	})
	group.Go(func() error {
		detected, detectErr = e.deps.Faces.DetectFaces(ctx, imageBytes)
		return nil
	})
	_ = group.Wait()

	if detectErr != nil {
		logger.Warn("face detection failed", "error", detectErr)
		result.addError("face detection", detectErr)
	}
	if ocrErr != nil {
		logger.Warn("text recognition failed", "error", ocrErr)
		result.addError("text recognition", ocrErr)
	}

	e.applyFaceRules(ctx, result, detected, imageBytes, logger)
	docData, rawText := e.applyTextRules(ctx, result, ocrResult, logger)
	e.applyNameRules(result, docData, person, logger)

	e.finalize(result)
	e.updateProfile(ctx, person, docData, result, logger)

	e.journal(ctx, audit.NewEvent(audit.EventVerificationFinished, profileRef, map[string]any{
		"verified":        result.Verified,
		"high_risk":       result.Details.HighRisk,
		"reason_codes":    result.Details.ReasonCodes,
		"face_similarity": result.FaceMatch.Similarity,
		"name_similarity": result.NameMatch.Similarity,
		"raw_text":        rawText,
	}))
	e.deps.Metrics.RecordVerification(result.Verified, result.Details.HighRisk,
		codeStrings(result.Details.ReasonCodes), time.Since(started))

	logger.Info("verification finished",
		"verified", result.Verified,
		"high_risk", result.Details.HighRisk,
		"reason_codes", result.Details.ReasonCodes,
		"duration", time.Since(started))
	return result
}

// applyFaceRules handles face counting, pairing, cropping and the
// provider comparison, including the degraded fallback.
func (e *Engine) applyFaceRules(ctx context.Context, result *Result, detected []models.DetectedFace, imageBytes []byte, logger *slog.Logger) {
	result.Details.FacesDetectedInSelfie = len(detected)

	switch {
	case len(detected) == 0:
		result.addCode(ReasonNoFaces)
		return
	case len(detected) == 1:
		result.addCode(ReasonTooFewFaces)
		return
	case len(detected) > faces.PairableFaceCount:
		result.addCode(ReasonTooManyFaces)
		return
	}

	// Exactly two faces: the larger one is assumed to be the live
	// selfie, the smaller the document portrait.
	selfieFace, documentFace, _ := faces.Pair(detected)
	result.Details.FacesDetectedInPassport = 1

	img, err := imaging.Decode(imageBytes)
	if err != nil {
		logger.Warn("image decode failed, using degraded face match", "error", err)
		result.addError("image decode", err)
		e.degradedMatch(result)
		return
	}

	selfieCrop, selfieErr := imaging.Crop(img, faces.CropRect(selfieFace, img.Bounds(), 0))
	documentCrop, documentErr := imaging.Crop(img, faces.CropRect(documentFace, img.Bounds(), 0))
	if selfieErr != nil || documentErr != nil {
		if documentErr != nil {
			result.addError("document face crop", documentErr)
			result.addCode(ReasonNoFaceInPassport)
		}
		if selfieErr != nil {
			result.addError("selfie face crop", selfieErr)
		}
		e.degradedMatch(result)
		return
	}

	selfieBytes, err := imaging.EncodeJPEG(selfieCrop)
	if err == nil {
		var documentBytes []byte
		documentBytes, err = imaging.EncodeJPEG(documentCrop)
		if err == nil {
			e.compareFaces(ctx, result, selfieBytes, documentBytes, logger)
			return
		}
	}
	result.addError("face crop encode", err)
	e.degradedMatch(result)
}

func (e *Engine) compareFaces(ctx context.Context, result *Result, selfie, portrait []byte, logger *slog.Logger) {
	comparison, err := e.deps.Faces.MatchFaces(ctx, selfie, portrait, CompareThreshold)
	if err != nil {
		logger.Warn("face comparison failed, using degraded face match", "error", err)
		result.addError("face comparison", err)
		e.degradedMatch(result)
		return
	}

	result.FaceMatch = *comparison
	if !comparison.Match {
		result.Details.HighRisk = true
		result.addCode(ReasonFaceMismatch)
		return
	}
	if comparison.Similarity < acceptSimilarity || comparison.Confidence < acceptConfidence {
		// Accepted, but not confidently enough for an automatic pass.
		result.Details.HighRisk = true
		result.addCode(ReasonLowConfidence)
	}
}

// degradedMatch is the fallback when faces cannot actually be
// compared: two faces were found, so assume a match, but flag the
// record because nothing was verified.
func (e *Engine) degradedMatch(result *Result) {
	result.FaceMatch = models.FaceComparisonResult{
		Match:      true,
		Similarity: degradedSimilarity,
	}
	result.Details.HighRisk = true
	result.addCode(ReasonLowConfidence)
}

// applyTextRules runs the field parser over the OCR output, applies
// the readability rule and optionally refines the result through the
// text-extraction service.
func (e *Engine) applyTextRules(ctx context.Context, result *Result, ocrResult *models.OcrResult, logger *slog.Logger) (document.RecognizedDocumentData, string) {
	var rawText string
	if ocrResult != nil {
		rawText = ocrResult.FullText
	}
	result.Details.PassportRawText = rawText

	docData := document.Parse(rawText)
	readable := docData.HasAny() || len([]rune(rawText)) > readableTextLength
	if !readable {
		result.addCode(ReasonPassportNotReadable)
	}

	if e.deps.Extractor != nil && rawText != "" {
		extraction, err := e.deps.Extractor.Extract(ctx, rawText)
		if err != nil {
			logger.Warn("text extraction failed, keeping parser output", "error", err)
			result.addError("text extraction", err)
		} else {
			// The extraction service sees context the regex rules miss;
			// prefer its fields when it produced them.
			if extraction.FullName != "" {
				docData.FullName = extraction.FullName
			}
			if extraction.Birthday != "" {
				docData.Birthday = extraction.Birthday
			}
		}
	}

	result.Details.PassportNameExtracted = docData.FullName != ""
	if docData.FullName != "" || docData.Birthday != "" {
		result.Details.PassportProfile = &PassportProfile{
			FullName: docData.FullName,
			Birthday: docData.Birthday,
		}
	}
	return docData, rawText
}

func (e *Engine) applyNameRules(result *Result, docData document.RecognizedDocumentData, person *profile.Profile, logger *slog.Logger) {
	userName := person.ComparisonName()
	result.NameMatch.PassportName = docData.FullName
	result.NameMatch.UserName = userName

	if userName == "" {
		// A profile with no name on file cannot be verified; treat it
		// as suspicious rather than passing by default.
		logger.Warn("profile has no name on file")
		result.Details.HighRisk = true
		result.addCode(ReasonNameMismatch)
		return
	}

	similarity := names.Similarity(docData.FullName, userName)
	result.NameMatch.Similarity = similarity
	result.NameMatch.Match = similarity >= names.MatchThreshold
	if !result.NameMatch.Match {
		result.Details.HighRisk = true
		result.addCode(ReasonNameMismatch)
	}
}

// finalize computes the verdict and applies the catch-all code for
// otherwise unexplained high-risk records.
func (e *Engine) finalize(result *Result) {
	if result.Details.HighRisk && len(result.Details.ReasonCodes) == 0 {
		result.addCode(ReasonPossibleForeignPassport)
	}

	exactlyTwoFaces := result.Details.FacesDetectedInSelfie == faces.PairableFaceCount
	readable := !result.hasCode(ReasonPassportNotReadable)
	result.Verified = exactlyTwoFaces &&
		readable &&
		result.FaceMatch.Match &&
		result.NameMatch.Match &&
		!result.hasCode(ReasonFaceMismatch) &&
		!result.hasCode(ReasonNameMismatch) &&
		!result.hasCode(ReasonPossibleForeignPassport) &&
		!result.Details.HighRisk
}

// updateProfile applies the side effects: recognized document fields
// are merged where the profile is still empty, and the birthday is
// overwritten when the document disagrees with the stored value. All
// of it is best-effort.
func (e *Engine) updateProfile(ctx context.Context, person *profile.Profile, docData document.RecognizedDocumentData, result *Result, logger *slog.Logger) {
	update := profile.Update{}
	if docData.Birthday != "" && docData.Birthday != person.Birthday {
		// The document birthday is treated as more authoritative than
		// the stored one. Every other field is fill-if-absent only.
		birthday := docData.Birthday
		update.Birthday = &birthday
	}
	if fields := docData.Fields(); len(fields) > 0 {
		update.Data = fields
	}
	if update.Birthday == nil && update.Data == nil {
		return
	}

	if _, err := e.deps.Profiles.Update(ctx, person.Ref, update); err != nil {
		logger.Warn("profile update failed", "error", err)
		result.addError("profile update", err)
	}
}

// failInfra builds the terminal result for infrastructure failures:
// storage unreachable, profile missing. The call still returns a
// structured not-verified result.
func (e *Engine) failInfra(ctx context.Context, result *Result, profileRef string, started time.Time, stage string, err error) *Result {
	slog.Error("verification aborted", "profile_ref", profileRef, "stage", stage, "error", err)
	result.addError(stage, err)
	result.Verified = false

	e.journal(ctx, audit.NewEvent(audit.EventVerificationFinished, profileRef, map[string]any{
		"verified": false,
		"errors":   result.Details.Errors,
	}))
	e.deps.Metrics.RecordVerification(false, false, nil, time.Since(started))
	return result
}

// journal appends an audit event, swallowing failures.
func (e *Engine) journal(ctx context.Context, event audit.Event) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.Append(ctx, event); err != nil {
		slog.Warn("audit append failed", "event_type", event.Type, "error", err)
	}
}

func codeStrings(codes []ReasonCode) []string {
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = string(code)
	}
	return out
}
