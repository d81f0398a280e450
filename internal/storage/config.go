package storage

import (
	"time"

	"github.com/openlearn/openlearn/backend/go-services/internal/config"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	Bucket     string
	PresignTTL time.Duration
}

// FromConfig converts the application config section. Enabled reports
// whether an endpoint was configured.
func FromConfig(c config.MinIOConfig) (*MinIOConfig, bool) {
	bucket := c.Bucket
	if bucket == "" {
		bucket = "openlearn"
	}
	ttl := c.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MinIOConfig{
		Endpoint:   c.Endpoint,
		AccessKey:  c.AccessKey,
		SecretKey:  c.SecretKey,
		UseSSL:     c.UseSSL,
		Bucket:     bucket,
		PresignTTL: ttl,
	}, c.Endpoint != ""
}
