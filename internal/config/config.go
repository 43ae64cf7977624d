package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	BaseURL     string

	ChatAPIKey    string
	ChatBaseURL   string
	ChatModelID   string
	FallbackKey   string
	FallbackURL   string
	FallbackModel string

	ElevenLabsKey     string
	ElevenLabsVoiceID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseTable      string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	chatKey := os.Getenv("CEREBRAS_API_KEY")
	chatModel := os.Getenv("CEREBRAS_MODEL_ID")
	if chatModel == "" {
		chatModel = "gpt-oss-120b"
	}
	if chatKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - primary LLM will not work")
	}

	fallbackKey := os.Getenv("FALLBACK_API_KEY")
	fallbackURL := os.Getenv("FALLBACK_BASE_URL")
	fallbackModel := os.Getenv("FALLBACK_MODEL_ID")
	if fallbackKey == "" {
		log.Println("Warning: FALLBACK_API_KEY not set - completion fallback disabled")
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - TTS will fall back to the carrier voice")
	}
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")

	twilioSID := os.Getenv("TWILIO_ACCOUNT_SID")
	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	twilioFrom := os.Getenv("TWILIO_FROM_NUMBER")
	if twilioSID == "" || twilioToken == "" {
		log.Println("Warning: Twilio credentials not set - outbound calling will not work")
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	supabaseTable := os.Getenv("SUPABASE_CALLS_TABLE")
	if supabaseTable == "" {
		supabaseTable = "call_records"
	}
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: Supabase not configured - call records will not be persisted")
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		log.Println("Warning: BASE_URL not set - Twilio webhooks need a public base URL")
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:        addr,
		BaseURL:            baseURL,
		ChatAPIKey:         chatKey,
		ChatBaseURL:        os.Getenv("CEREBRAS_BASE_URL"),
		ChatModelID:        chatModel,
		FallbackKey:        fallbackKey,
		FallbackURL:        fallbackURL,
		FallbackModel:      fallbackModel,
		ElevenLabsKey:      elevenKey,
		ElevenLabsVoiceID:  voiceID,
		TwilioAccountSID:   twilioSID,
		TwilioAuthToken:    twilioToken,
		TwilioFromNumber:   twilioFrom,
		SupabaseURL:        supabaseURL,
		SupabaseServiceKey: supabaseKey,
		SupabaseTable:      supabaseTable,
	}
}
