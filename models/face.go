package models

// BoundingBox describes a detected face's location and size in pixel
// coordinates of the source image.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// DetectedFace is a single face reported by the face analysis provider.
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// FaceComparisonResult is the outcome of comparing two face images.
type FaceComparisonResult struct {
	Match           bool    `json:"match"`
	Similarity      float64 `json:"similarity"`
	Confidence      float64 `json:"confidence"`
	SourceFaceCount int     `json:"source_face_count"`
	TargetFaceCount int     `json:"target_face_count"`
}
