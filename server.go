package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-kyc-verifier/avatar"
	"go-kyc-verifier/storage"
	"go-kyc-verifier/verification"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_DECODE_REQUEST = "failed to decode request body"
const ERR_DECODE_IMAGE = "failed to decode image"
const ERR_STORE_IMAGE = "failed to store image"
const ERR_ATTESTATION = "failed to create attestation"

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

type ServerState struct {
	engine     *verification.Engine
	avatars    *avatar.Extractor
	blobs      storage.BlobStore
	attestator AttestationCreator
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/verify", func(w http.ResponseWriter, r *http.Request) {
		handleVerify(state, w, r)
	})
	router.HandleFunc("/api/avatar", func(w http.ResponseWriter, r *http.Request) {
		handleAvatar(state, w, r)
	})
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	slog.Debug("Registered all API routes")

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Verification waits on several recognition providers, so the
		// write timeout is generous.
		WriteTimeout: 120 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

// VerificationRequest carries one combined selfie-with-document photo.
// Image is base64-encoded; alternatively ImageRef points at an already
// stored blob.
type VerificationRequest struct {
	ProfileRef string `json:"profile_ref"`
	Image      string `json:"image,omitempty"`
	ImageRef   string `json:"image_ref,omitempty"`
}

type VerificationResponse struct {
	Result      *verification.Result `json:"result"`
	Attestation string               `json:"attestation,omitempty"`
	AvatarRef   string               `json:"avatar_ref,omitempty"`
}

func handleVerify(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received verification request")

	request, err := decodeVerificationRequest(r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	imageRef, err := resolveImageRef(r.Context(), state, request)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_STORE_IMAGE, err)
		return
	}

	slog.Debug("Running verification", "profile_ref", request.ProfileRef, "image_ref", imageRef)
	result := state.engine.Verify(r.Context(), imageRef, request.ProfileRef)

	response := VerificationResponse{Result: result}

	if result.Verified && state.attestator != nil {
		slog.Debug("Creating verification attestation", "profile_ref", request.ProfileRef)
		attestation, err := state.attestator.CreateAttestation(result, request.ProfileRef)
		if err != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_ATTESTATION, err)
			return
		}
		response.Attestation = attestation
	}

	// The verified selfie doubles as avatar source.
	if result.Verified && state.avatars != nil {
		response.AvatarRef = state.avatars.Extract(r.Context(), imageRef, request.ProfileRef)
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Verification request completed", "profile_ref", request.ProfileRef, "verified", result.Verified)
}

type AvatarResponse struct {
	AvatarRef string `json:"avatar_ref,omitempty"`
}

func handleAvatar(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received avatar extraction request")

	request, err := decodeVerificationRequest(r)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_REQUEST, err)
		return
	}

	imageRef, err := resolveImageRef(r.Context(), state, request)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_STORE_IMAGE, err)
		return
	}

	avatarRef := state.avatars.Extract(r.Context(), imageRef, request.ProfileRef)
	if err := writeJSON(w, http.StatusOK, AvatarResponse{AvatarRef: avatarRef}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Avatar request completed", "profile_ref", request.ProfileRef, "avatar_ref", avatarRef)
}

// decodeVerificationRequest decodes the request body
func decodeVerificationRequest(r *http.Request) (VerificationRequest, error) {
	slog.Debug("Decoding verification request body")
	var request VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		slog.Warn("Failed to decode verification request", "error", err)
		return request, fmt.Errorf("decode request body: %w", err)
	}
	if request.ProfileRef == "" {
		return request, fmt.Errorf("profile_ref is required")
	}
	if request.Image == "" && request.ImageRef == "" {
		return request, fmt.Errorf("either image or image_ref is required")
	}
	slog.Debug("Verification request decoded successfully", "profile_ref", request.ProfileRef)
	return request, nil
}

// resolveImageRef stores an inline image, or passes through an
// existing ref.
func resolveImageRef(ctx context.Context, state *ServerState, request VerificationRequest) (string, error) {
	if request.ImageRef != "" {
		return request.ImageRef, nil
	}

	imageBytes, err := base64.StdEncoding.DecodeString(request.Image)
	if err != nil {
		slog.Warn("Failed to decode base64 image", "error", err)
		return "", fmt.Errorf("%s: %w", ERR_DECODE_IMAGE, err)
	}

	ref, err := state.blobs.Put(ctx, imageBytes, storage.Meta{
		ContentType: "image/jpeg",
		Kind:        "upload",
		ProfileRef:  request.ProfileRef,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", ERR_STORE_IMAGE, err)
	}
	slog.Debug("Stored uploaded image", "ref", ref, "bytes", len(imageBytes))
	return ref, nil
}

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
