// Package avatar turns a selfie into a stored profile avatar. The
// whole operation is best-effort: any failure yields an empty ref, not
// an error the caller has to handle.
package avatar

import (
	"context"
	"log/slog"

	"go-kyc-verifier/faces"
	"go-kyc-verifier/imaging"
	"go-kyc-verifier/metrics"
	"go-kyc-verifier/models"
	"go-kyc-verifier/profile"
	"go-kyc-verifier/storage"
)

// Avatars are square "cover" crops of the largest detected face.
const (
	AvatarSize = 200
)

// FaceDetector finds faces in an image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, image []byte) ([]models.DetectedFace, error)
}

// BlobStore is the subset of blob storage the extractor needs.
type BlobStore interface {
	Get(ctx context.Context, ref string) ([]byte, error)
	Put(ctx context.Context, data []byte, meta storage.Meta) (string, error)
}

// Extractor crops an avatar out of a selfie and attaches it to the
// profile.
type Extractor struct {
	blobs    BlobStore
	profiles profile.Store
	detector FaceDetector
	metrics  *metrics.Metrics
}

func NewExtractor(blobs BlobStore, profiles profile.Store, detector FaceDetector, m *metrics.Metrics) *Extractor {
	return &Extractor{blobs: blobs, profiles: profiles, detector: detector, metrics: m}
}

// Extract detects the largest face in the stored image, crops it with
// padding, resizes to a fixed square and stores the result as the
// profile's avatar. Returns the new avatar ref, or "" when no avatar
// could be produced.
func (e *Extractor) Extract(ctx context.Context, imageRef, profileRef string) string {
	logger := slog.With("profile_ref", profileRef, "image_ref", imageRef)

	imageBytes, err := e.blobs.Get(ctx, imageRef)
	if err != nil {
		logger.Warn("avatar extraction: image load failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}

	detected, err := e.detector.DetectFaces(ctx, imageBytes)
	if err != nil {
		logger.Warn("avatar extraction: face detection failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}
	face, ok := faces.Largest(detected)
	if !ok {
		logger.Debug("avatar extraction: no faces in image")
		e.metrics.RecordAvatar("no_face")
		return ""
	}

	img, err := imaging.Decode(imageBytes)
	if err != nil {
		logger.Warn("avatar extraction: image decode failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}

	cropped, err := imaging.Crop(img, faces.CropRect(face, img.Bounds(), faces.AvatarPadding))
	if err != nil {
		logger.Warn("avatar extraction: crop failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}
	avatarBytes, err := imaging.EncodeJPEG(imaging.ResizeCover(cropped, AvatarSize, AvatarSize))
	if err != nil {
		logger.Warn("avatar extraction: encode failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}

	avatarRef, err := e.blobs.Put(ctx, avatarBytes, storage.Meta{
		ContentType: "image/jpeg",
		Kind:        "avatar",
		ProfileRef:  profileRef,
	})
	if err != nil {
		logger.Warn("avatar extraction: store failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}

	if _, err := e.profiles.Update(ctx, profileRef, profile.Update{AvatarRef: &avatarRef}); err != nil {
		logger.Warn("avatar extraction: profile update failed", "error", err)
		e.metrics.RecordAvatar("error")
		return ""
	}

	logger.Debug("avatar extracted", "avatar_ref", avatarRef)
	e.metrics.RecordAvatar("extracted")
	return avatarRef
}
