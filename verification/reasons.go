package verification

// ReasonCode explains why a verification attempt was rejected or
// flagged. Codes are informational, never errors; several may co-occur
// on one result.
type ReasonCode string

const (
	ReasonNoFaces                 ReasonCode = "NO_FACES"
	ReasonTooFewFaces             ReasonCode = "TOO_FEW_FACES"
	ReasonTooManyFaces            ReasonCode = "TOO_MANY_FACES"
	ReasonFaceMismatch            ReasonCode = "FACE_MISMATCH"
	ReasonPassportNotReadable     ReasonCode = "PASSPORT_NOT_READABLE"
	ReasonNoFaceInPassport        ReasonCode = "NO_FACE_IN_PASSPORT"
	ReasonNameMismatch            ReasonCode = "NAME_MISMATCH"
	ReasonLowConfidence           ReasonCode = "LOW_CONFIDENCE"
	ReasonPossibleForeignPassport ReasonCode = "POSSIBLE_FOREIGN_PASSPORT"
)

var reasonDescriptions = map[ReasonCode]string{
	ReasonNoFaces:                 "no faces were detected in the uploaded photo",
	ReasonTooFewFaces:             "only one face was detected; the photo must show both the person and the document portrait",
	ReasonTooManyFaces:            "more than two faces were detected in the uploaded photo",
	ReasonFaceMismatch:            "the selfie face does not match the document portrait",
	ReasonPassportNotReadable:     "no readable text could be recognized on the document",
	ReasonNoFaceInPassport:        "no portrait could be extracted from the document",
	ReasonNameMismatch:            "the name on the document does not match the profile",
	ReasonLowConfidence:           "the match was accepted with low confidence and needs manual review",
	ReasonPossibleForeignPassport: "the document does not look like a supported passport",
}

// Describe returns a human-readable explanation for the code.
func (c ReasonCode) Describe() string {
	if desc, ok := reasonDescriptions[c]; ok {
		return desc
	}
	return string(c)
}
