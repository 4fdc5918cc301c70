package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go-kyc-verifier/audit"
	"go-kyc-verifier/avatar"
	"go-kyc-verifier/logging"
	"go-kyc-verifier/metrics"
	"go-kyc-verifier/profile"
	"go-kyc-verifier/providers"
	redisclient "go-kyc-verifier/redis"
	"go-kyc-verifier/storage"
	"go-kyc-verifier/verification"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	OcrServiceUrl        string `json:"ocr_service_url"`
	OcrApiKey            string `json:"ocr_api_key,omitempty"`
	OcrLocale            string `json:"ocr_locale,omitempty"`
	FaceServiceUrl       string `json:"face_service_url"`
	ExtractionServiceUrl string `json:"extraction_service_url,omitempty"`
	ExtractionApiKey     string `json:"extraction_api_key,omitempty"`
	ExtractionModel      string `json:"extraction_model,omitempty"`

	JwtPrivateKeyPath string `json:"jwt_private_key_path,omitempty"`
	IssuerId          string `json:"issuer_id,omitempty"`

	StorageType         string                          `json:"storage_type"`
	BlobExpiryHours     int                             `json:"blob_expiry_hours,omitempty"`
	RedisConfig         redisclient.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redisclient.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`

	ProfileStoreType string `json:"profile_store_type"`
	PostgresDsn      string `json:"postgres_dsn,omitempty"`

	AuditSink string `json:"audit_sink,omitempty"`
}

func main() {
	// Secrets may come from the environment instead of the config file.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		fatal("please provide a config path using the --config flag", nil)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		fatal("failed to read config file", err)
	}

	logging.InitLogger(config.LogLevel, config.LogFormat)
	slog.Info("using config", "path", *configPath)
	slog.Info("hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	pipelineMetrics := metrics.New()

	redisClient, namespace, err := connectRedis(&config)
	if err != nil {
		fatal("failed to connect to Redis", err)
	}

	blobs, err := createBlobStorage(&config, redisClient, namespace)
	if err != nil {
		fatal("failed to instantiate blob storage", err)
	}

	profiles, err := createProfileStore(&config)
	if err != nil {
		fatal("failed to instantiate profile store", err)
	}

	journal := createAuditJournal(&config, redisClient, namespace)

	ocrClient := providers.NewOcrClient(config.OcrServiceUrl, config.OcrApiKey, config.OcrLocale)
	faceClient := providers.NewFaceClient(config.FaceServiceUrl)

	var extractor verification.TextExtractor
	if config.ExtractionServiceUrl != "" {
		slog.Info("Text-extraction service enabled", "model", config.ExtractionModel)
		extractor = providers.NewExtractClient(
			config.ExtractionServiceUrl,
			envOr("EXTRACTION_API_KEY", config.ExtractionApiKey),
			config.ExtractionModel,
		)
	}

	engine := verification.NewEngine(verification.Deps{
		Blobs:     blobs,
		Profiles:  profiles,
		OCR:       ocrClient,
		Faces:     faceClient,
		Extractor: extractor,
		Journal:   journal,
		Metrics:   pipelineMetrics,
	})

	avatars := avatar.NewExtractor(blobs, profiles, faceClient, pipelineMetrics)

	var attestator AttestationCreator
	if config.JwtPrivateKeyPath != "" {
		attestator, err = NewRsaAttestationCreator(config.JwtPrivateKeyPath, config.IssuerId)
		if err != nil {
			fatal("failed to instantiate attestation creator", err)
		}
	}

	serverState := ServerState{
		engine:     engine,
		avatars:    avatars,
		blobs:      blobs,
		attestator: attestator,
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		fatal("failed to create server", err)
	}

	err = server.ListenAndServe()
	if err != nil {
		fatal("failed to listen and serve", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// connectRedis creates the shared Redis client when the configured
// storage or audit sink needs one.
func connectRedis(config *Config) (*goredis.Client, string, error) {
	switch config.StorageType {
	case "redis":
		slog.Info("Using redis storage")
		client, err := redisclient.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, "", err
		}
		return client, config.RedisConfig.Namespace, nil
	case "redis_sentinel":
		slog.Info("Using redis sentinel storage")
		client, err := redisclient.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, "", err
		}
		return client, config.RedisSentinelConfig.Namespace, nil
	default:
		return nil, "", nil
	}
}

func createBlobStorage(config *Config, client *goredis.Client, namespace string) (storage.BlobStore, error) {
	if client != nil {
		expiry := time.Duration(config.BlobExpiryHours) * time.Hour
		return storage.NewRedisStore(client, namespace, expiry), nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory storage")
		return storage.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

func createProfileStore(config *Config) (profile.Store, error) {
	switch config.ProfileStoreType {
	case "postgres":
		slog.Info("Using postgres profile store")
		dsn := envOr("POSTGRES_DSN", config.PostgresDsn)
		return profile.NewPostgresStore(context.Background(), dsn)
	case "memory", "":
		slog.Info("Using in memory profile store")
		return profile.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%v is not a valid profile store type", config.ProfileStoreType)
}

func createAuditJournal(config *Config, client *goredis.Client, namespace string) audit.Journal {
	switch config.AuditSink {
	case "redis":
		if client != nil {
			slog.Info("Using redis audit journal")
			return audit.NewRedisJournal(client, namespace)
		}
		slog.Warn("redis audit sink configured without redis storage, falling back to log journal")
		return audit.NewLogJournal()
	case "memory":
		return audit.NewMemoryJournal()
	default:
		slog.Info("Using log audit journal")
		return audit.NewLogJournal()
	}
}
