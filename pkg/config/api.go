package config

import "time"

// APIConfig holds runtime configuration for the marketplace API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	OracleURL          string
	OracleAPIKey       string
	OracleModel        string
	OracleTimeout      time.Duration
	SignupBonusCredits int
	PremiumApplyCost   int
	QuizAttemptCost    int
	InterviewDuration  time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://skillbit:skillbit@db:5432/skillbit?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "migrations"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:    time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		OracleURL:          GetString("ORACLE_URL", "https://api.groq.com/openai/v1/chat/completions"),
		OracleAPIKey:       GetString("ORACLE_API_KEY", ""),
		OracleModel:        GetString("ORACLE_MODEL", "llama-3.3-70b-versatile"),
		OracleTimeout:      time.Duration(GetInt("ORACLE_TIMEOUT_SECONDS", 20)) * time.Second,
		SignupBonusCredits: GetInt("SIGNUP_BONUS_CREDITS", 50),
		PremiumApplyCost:   GetInt("PREMIUM_APPLY_COST", 6),
		QuizAttemptCost:    GetInt("QUIZ_ATTEMPT_COST", 10),
		InterviewDuration:  time.Duration(GetInt("INTERVIEW_SECONDS", 60)) * time.Second,
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
