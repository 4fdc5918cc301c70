package models

// OcrResult is the raw output of the OCR provider for one image.
type OcrResult struct {
	FullText   string  `json:"full_text"`
	Confidence float64 `json:"confidence"`
}

// TextExtraction is the advisory output of the generative text-extraction
// service. Empty fields mean the service could not determine a value.
type TextExtraction struct {
	FullName string `json:"fullName"`
	Birthday string `json:"birthday"`
}
