// Package faces decides which detected face on a combined
// selfie-with-document photo is the live person and which is the photo
// printed on the document, and computes crop rectangles for both.
package faces

import (
	"image"
	"sort"

	"go-kyc-verifier/models"
)

// PairableFaceCount is the only face count eligible for pairing: the
// live face plus the one printed on the document.
const PairableFaceCount = 2

// AvatarPadding is the bounding-box expansion applied around a face
// when cropping an avatar, as a fraction of the box size per side.
const AvatarPadding = 0.3

// SortByArea orders faces by bounding-box area, largest first. The sort
// is stable so equally sized faces keep their discovery order.
func SortByArea(detected []models.DetectedFace) []models.DetectedFace {
	sorted := make([]models.DetectedFace, len(detected))
	copy(sorted, detected)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.Area() > sorted[j].BoundingBox.Area()
	})
	return sorted
}

// Pair splits exactly two detected faces into the presumed live selfie
// face and the document-printed face. The larger face is assumed to be
// the live one; there is no liveness check behind this, it is a size
// heuristic. ok is false for any other face count.
func Pair(detected []models.DetectedFace) (selfie, document models.DetectedFace, ok bool) {
	if len(detected) != PairableFaceCount {
		return models.DetectedFace{}, models.DetectedFace{}, false
	}
	sorted := SortByArea(detected)
	return sorted[0], sorted[1], true
}

// Largest returns the face with the biggest bounding box, the presumed
// live face when several are present. ok is false for an empty slice.
func Largest(detected []models.DetectedFace) (models.DetectedFace, bool) {
	if len(detected) == 0 {
		return models.DetectedFace{}, false
	}
	return SortByArea(detected)[0], true
}

// CropRect computes an axis-aligned crop rectangle for a face, expanded
// by padding (a fraction of the box size per side) and clamped to the
// image bounds. The result may be empty when the box lies outside the
// image.
func CropRect(face models.DetectedFace, bounds image.Rectangle, padding float64) image.Rectangle {
	box := face.BoundingBox
	padW := int(float64(box.Width) * padding)
	padH := int(float64(box.Height) * padding)

	rect := image.Rect(
		box.X-padW,
		box.Y-padH,
		box.X+box.Width+padW,
		box.Y+box.Height+padH,
	)
	return rect.Intersect(bounds)
}
