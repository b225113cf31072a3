package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Speech   SpeechConfig
	Scoring  ScoringConfig
	Live     LiveConfig
	Audio    AudioConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	RunWorkers         bool   // run scoring workers inside the server process
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/interview?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool // apply embedded migrations on startup
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds candidate link token settings. An empty secret disables token checks.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket used for synthesized agent audio.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AudioBucket          string
	PresignExpireMinutes int
}

// SpeechConfig points at the external recognizer / synthesizer services.
type SpeechConfig struct {
	RecognizerURL     string
	SynthesizerURL    string
	RecognizeTimeout  time.Duration
	SynthesizeTimeout time.Duration
}

// ScoringConfig selects the grading model and the report weights.
type ScoringConfig struct {
	Provider          string // "ollama" | "gemini" | "stub"
	OllamaURL         string
	OllamaModel       string
	GeminiAPIKey      string
	GeminiModel       string
	Timeout           time.Duration
	WorkerConcurrency int
	Weights           Weights
}

// Weights is the fixed weight vector applied to sub-scores.
type Weights struct {
	Technical     float64 `yaml:"technical"`
	Communication float64 `yaml:"communication"`
	Completeness  float64 `yaml:"completeness"`
}

// LiveConfig tunes the live signal analyzer.
type LiveConfig struct {
	LowWordThreshold int           `yaml:"low_word_threshold"`
	FillerRatio      float64       `yaml:"filler_ratio"`
	StreakThreshold  int           `yaml:"streak_threshold"`
	MinWords         int           `yaml:"min_words"`
	RamblingWords    int           `yaml:"rambling_words"`
	WarmUp           time.Duration `yaml:"warm_up"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// AudioConfig tunes audio ingress.
type AudioConfig struct {
	MaxBufferBytes   int
	MaxChunkBytes    int64
	FinalizePolicy   string // "client" | "vad"
	VADThreshold     float64
	VADSilence       time.Duration
	PartialRecognize bool // re-recognize the rolling buffer on partial chunks for live feedback
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// DefaultWeights returns technical 0.6, communication 0.3, completeness 0.1.
func DefaultWeights() Weights {
	return Weights{Technical: 0.6, Communication: 0.3, Completeness: 0.1}
}

// DefaultLive returns the live analyzer thresholds used when nothing is configured.
func DefaultLive() LiveConfig {
	return LiveConfig{
		LowWordThreshold: 15,
		FillerRatio:      0.15,
		StreakThreshold:  3,
		MinWords:         10,
		RamblingWords:    120,
		WarmUp:           8 * time.Second,
		Cooldown:         6 * time.Second,
	}
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	live := DefaultLive()
	live.LowWordThreshold = getEnvInt("LIVE_LOW_WORD_THRESHOLD", live.LowWordThreshold)
	live.FillerRatio = getEnvFloat("LIVE_FILLER_RATIO", live.FillerRatio)
	live.StreakThreshold = getEnvInt("LIVE_STREAK_THRESHOLD", live.StreakThreshold)
	live.MinWords = getEnvInt("LIVE_MIN_WORDS", live.MinWords)
	live.RamblingWords = getEnvInt("LIVE_RAMBLING_WORDS", live.RamblingWords)
	live.WarmUp = getEnvDuration("LIVE_WARM_UP", live.WarmUp)
	live.Cooldown = getEnvDuration("LIVE_COOLDOWN", live.Cooldown)

	weights := DefaultWeights()
	weights.Technical = getEnvFloat("AI_TECH_WEIGHT", weights.Technical)
	weights.Communication = getEnvFloat("AI_COMM_WEIGHT", weights.Communication)
	weights.Completeness = getEnvFloat("AI_COMP_WEIGHT", weights.Completeness)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			RunWorkers:         getEnvBool("SERVER_RUN_WORKERS", true),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/interview?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "interview"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getEnvBool("DB_MIGRATE", true),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("CANDIDATE_TOKEN_SECRET", ""),
			ExpireHours: getEnvInt("CANDIDATE_TOKEN_EXPIRE_HOURS", 72),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AudioBucket:          getEnv("AWS_S3_AGENT_AUDIO_BUCKET", "interview-agent-audio"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Speech: SpeechConfig{
			RecognizerURL:     getEnv("ASR_URL", ""),
			SynthesizerURL:    getEnv("TTS_URL", ""),
			RecognizeTimeout:  getEnvDuration("ASR_TIMEOUT", 20*time.Second),
			SynthesizeTimeout: getEnvDuration("TTS_TIMEOUT", 5*time.Second),
		},
		Scoring: ScoringConfig{
			Provider:          strings.ToLower(getEnv("AI_PROVIDER", "stub")),
			OllamaURL:         getEnv("OLLAMA_URL", "http://127.0.0.1:11434"),
			OllamaModel:       getEnv("OLLAMA_MODEL", "tinyllama"),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:           getEnvDuration("AI_TIMEOUT", 45*time.Second),
			WorkerConcurrency: getEnvInt("SCORING_WORKERS", 4),
			Weights:           weights,
		},
		Live: live,
		Audio: AudioConfig{
			MaxBufferBytes:   getEnvInt("AUDIO_MAX_BUFFER_BYTES", 2*60*16000*2),
			MaxChunkBytes:    int64(getEnvInt("AUDIO_MAX_CHUNK_BYTES", 4*1024*1024)),
			FinalizePolicy:   strings.ToLower(getEnv("AUDIO_FINALIZE_POLICY", "client")),
			VADThreshold:     getEnvFloat("VAD_RMS_THRESHOLD", 0.01),
			VADSilence:       getEnvDuration("VAD_SILENCE", 1200*time.Millisecond),
			PartialRecognize: getEnvBool("AUDIO_PARTIAL_RECOGNIZE", false),
		},
	}

	if path := getEnv("INTERVIEW_TUNING_FILE", ""); path != "" {
		if err := ApplyTuningFile(cfg, path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
