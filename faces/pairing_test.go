package faces

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-kyc-verifier/models"
)

func face(x, y, w, h int) models.DetectedFace {
	return models.DetectedFace{
		BoundingBox: models.BoundingBox{X: x, Y: y, Width: w, Height: h},
		Confidence:  0.99,
	}
}

func TestPairLargerFaceIsSelfie(t *testing.T) {
	small := face(500, 600, 80, 100)
	large := face(100, 100, 300, 400)

	selfie, document, ok := Pair([]models.DetectedFace{small, large})
	require.True(t, ok)
	assert.Equal(t, large, selfie)
	assert.Equal(t, small, document)
}

func TestPairRejectsOtherCounts(t *testing.T) {
	for _, count := range []int{0, 1, 3, 5} {
		detected := make([]models.DetectedFace, count)
		for i := range detected {
			detected[i] = face(i*10, i*10, 50+i, 50+i)
		}
		_, _, ok := Pair(detected)
		assert.Falsef(t, ok, "count %d must not be pairable", count)
	}
}

func TestSortByAreaIsStable(t *testing.T) {
	a := face(0, 0, 100, 100)
	b := face(10, 10, 100, 100)
	c := face(20, 20, 10, 10)

	sorted := SortByArea([]models.DetectedFace{c, a, b})
	assert.Equal(t, []models.DetectedFace{a, b, c}, sorted)
}

func TestLargest(t *testing.T) {
	_, ok := Largest(nil)
	assert.False(t, ok)

	big := face(0, 0, 200, 200)
	got, ok := Largest([]models.DetectedFace{face(0, 0, 50, 50), big})
	require.True(t, ok)
	assert.Equal(t, big, got)
}

func TestCropRectNoPadding(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 800)
	rect := CropRect(face(100, 120, 200, 220), bounds, 0)
	assert.Equal(t, image.Rect(100, 120, 300, 340), rect)
}

func TestCropRectPaddingAndClamping(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 400)

	// A face near the top-left corner: padding would push the rect
	// negative, it must be clamped to the image.
	rect := CropRect(face(10, 10, 100, 100), bounds, AvatarPadding)
	assert.Equal(t, image.Rect(0, 0, 140, 140), rect)

	// A face near the bottom-right corner clamps on the far edges.
	rect = CropRect(face(350, 350, 100, 100), bounds, AvatarPadding)
	assert.Equal(t, image.Rect(320, 320, 400, 400), rect)
}

func TestCropRectOutsideBoundsIsEmpty(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	rect := CropRect(face(500, 500, 50, 50), bounds, 0)
	assert.True(t, rect.Empty())
}
