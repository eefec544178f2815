package config

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string

	JWTSecret string
	TokenTTL  time.Duration

	SendGridAPIKey string
	EmailFrom      string

	AMQPURL      string
	AMQPExchange string

	ProximityRadiusMeters float64
	ProximityCooldown     time.Duration
	StalenessWindow       time.Duration
	FeedInterval          time.Duration

	Cloudinary Cloudinary
	Admin      Admin
}

// Cloudinary holds the credentials used to sign report photo uploads
type Cloudinary struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
}

// Admin holds the bootstrap administrator account
type Admin struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// New sets up all config related services
func New() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	//setup zap logger and replace default logger
	logger, err := setLogger(v.GetString("ENV"))
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "local")
	v.SetDefault("DB_NAME", "smartwaste")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("EMAIL_FROM", "noreply@smartwaste.com")
	v.SetDefault("AMQP_EXCHANGE", "smartwaste.events")
	v.SetDefault("PROXIMITY_RADIUS_METERS", 500)
	v.SetDefault("PROXIMITY_COOLDOWN", "30m")
	v.SetDefault("STALENESS_WINDOW", "15m")
	v.SetDefault("FEED_INTERVAL", "3s")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_EMAIL", "admin@smartwaste.com")
	v.SetDefault("ADMIN_PHONE", "+2201234567")
}

func load(v *viper.Viper) *Config {
	return &Config{
		URL:          v.GetString("DB_URI"),
		DatabaseName: v.GetString("DB_NAME"),
		BaseURL:      v.GetString("BASE_URL"),
		Port:         v.GetString("PORT"),
		Env:          v.GetString("ENV"),

		JWTSecret: v.GetString("JWT_SECRET"),
		TokenTTL:  v.GetDuration("TOKEN_TTL"),

		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		EmailFrom:      v.GetString("EMAIL_FROM"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),

		ProximityRadiusMeters: v.GetFloat64("PROXIMITY_RADIUS_METERS"),
		ProximityCooldown:     v.GetDuration("PROXIMITY_COOLDOWN"),
		StalenessWindow:       v.GetDuration("STALENESS_WINDOW"),
		FeedInterval:          v.GetDuration("FEED_INTERVAL"),

		Cloudinary: Cloudinary{
			CloudName:    v.GetString("CLOUDINARY_CLOUD_NAME"),
			APIKey:       v.GetString("CLOUDINARY_API_KEY"),
			APISecret:    v.GetString("CLOUDINARY_API_SECRET"),
			UploadPreset: v.GetString("CLOUDINARY_UPLOAD_PRESET"),
		},
		Admin: Admin{
			Username: v.GetString("ADMIN_USERNAME"),
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
			Phone:    v.GetString("ADMIN_PHONE"),
		},
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)
	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	b, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_, _ = w.Write(b)
}
