package main

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"go-kyc-verifier/verification"

	"github.com/golang-jwt/jwt/v4"
)

// AttestationCreator signs a verification result so downstream services
// can trust the verdict without re-running the pipeline.
type AttestationCreator interface {
	CreateAttestation(result *verification.Result, profileRef string) (string, error)
}

const attestationValidity = 24 * time.Hour

func NewRsaAttestationCreator(privateKeyPath string, issuerId string) (*RsaAttestationCreator, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwt private key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt private key: %w", err)
	}

	return &RsaAttestationCreator{
		privateKey: privateKey,
		issuerId:   issuerId,
	}, nil
}

type RsaAttestationCreator struct {
	privateKey *rsa.PrivateKey
	issuerId   string
}

func (c *RsaAttestationCreator) CreateAttestation(result *verification.Result, profileRef string) (string, error) {
	now := time.Now()

	codes := make([]string, 0, len(result.Details.ReasonCodes))
	for _, code := range result.Details.ReasonCodes {
		codes = append(codes, string(code))
	}

	claims := jwt.MapClaims{
		"iss":             c.issuerId,
		"sub":             profileRef,
		"iat":             now.Unix(),
		"exp":             now.Add(attestationValidity).Unix(),
		"verified":        result.Verified,
		"high_risk":       result.Details.HighRisk,
		"face_similarity": result.FaceMatch.Similarity,
		"name_similarity": result.NameMatch.Similarity,
		"reason_codes":    codes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign attestation: %w", err)
	}
	return signed, nil
}
