package verification

import "go-kyc-verifier/models"

// Result is the terminal artifact of one verification attempt. It is
// built once per call and never mutated after return.
type Result struct {
	Verified  bool                        `json:"verified"`
	FaceMatch models.FaceComparisonResult `json:"faceMatch"`
	NameMatch NameMatch                   `json:"nameMatch"`
	Details   Details                     `json:"details"`
	Reasons   []string                    `json:"reasons,omitempty"`
}

// NameMatch reports the document-vs-profile name comparison.
type NameMatch struct {
	Match        bool    `json:"match"`
	PassportName string  `json:"passportName,omitempty"`
	UserName     string  `json:"userName,omitempty"`
	Similarity   float64 `json:"similarity"`
}

// Details carries the explanatory breakdown behind the verdict.
type Details struct {
	FacesDetectedInSelfie   int              `json:"facesDetectedInSelfie"`
	FacesDetectedInPassport int              `json:"facesDetectedInPassport"`
	PassportNameExtracted   bool             `json:"passportNameExtracted"`
	PassportRawText         string           `json:"passportRawText,omitempty"`
	Errors                  []string         `json:"errors,omitempty"`
	PassportProfile         *PassportProfile `json:"passportProfile,omitempty"`
	ReasonCodes             []ReasonCode     `json:"reasonCodes,omitempty"`
	HighRisk                bool             `json:"highRisk"`
}

// PassportProfile is the document-extracted subset relevant to the
// profile comparison.
type PassportProfile struct {
	FullName string `json:"fullName,omitempty"`
	Birthday string `json:"birthday,omitempty"`
}

func (r *Result) addCode(code ReasonCode) {
	for _, existing := range r.Details.ReasonCodes {
		if existing == code {
			return
		}
	}
	r.Details.ReasonCodes = append(r.Details.ReasonCodes, code)
	r.Reasons = append(r.Reasons, code.Describe())
}

func (r *Result) hasCode(code ReasonCode) bool {
	for _, existing := range r.Details.ReasonCodes {
		if existing == code {
			return true
		}
	}
	return false
}

func (r *Result) addError(stage string, err error) {
	r.Details.Errors = append(r.Details.Errors, stage+": "+err.Error())
}
