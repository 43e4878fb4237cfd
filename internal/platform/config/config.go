package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-wide configuration so main stays lean. Values come
// from the environment; cmd binaries load a .env file first when present.
type Config struct {
	Addr          string
	DatabaseDSN   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	PII       PII
	Audit     Audit
	Retention Retention

	// ApprovalValidity is how long an approved request stays valid before
	// the expiry sweep moves it to Expired.
	ApprovalValidity time.Duration
}

// PII holds field-encryption key material. Keys are process-wide
// configuration, never per-record; each key carries a version so rotation
// keeps old ciphertexts readable.
type PII struct {
	// Keys maps key version to 32-byte master key.
	Keys map[int][]byte
	// ActiveVersion is the version used for new ciphertexts.
	ActiveVersion int
}

// Audit holds audit-trail behavior flags.
type Audit struct {
	// LogPIIAccess enables an audit entry on every read of a PII-bearing
	// record and on every update that touches PII fields.
	LogPIIAccess bool
}

// Retention holds per-entity retention windows for the purge engine.
type Retention struct {
	// Days maps entity type to its retention window in days. Entities not
	// listed fall back to DefaultDays.
	Days map[string]int
	// DefaultDays is the LGPD-aligned default window.
	DefaultDays int
}

// WindowDays returns the retention window for an entity type.
func (r Retention) WindowDays(entityType string) int {
	if d, ok := r.Days[entityType]; ok {
		return d
	}
	return r.DefaultDays
}

const (
	defaultRetentionDays    = 3650 // ten years
	defaultApprovalValid    = 365 * 24 * time.Hour
	defaultAuditTopicName   = "amparo.audit.compliance"
	defaultListenAddr       = ":8080"
	defaultActiveKeyVersion = 1
)

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("AMPARO_ADDR", defaultListenAddr),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		AuditTopic:    envOr("KAFKA_AUDIT_TOPIC", defaultAuditTopicName),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Audit: Audit{
			LogPIIAccess: os.Getenv("AUDIT_PII_ACCESS") != "false",
		},
		ApprovalValidity: defaultApprovalValid,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if days := os.Getenv("APPROVAL_VALIDITY_DAYS"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid APPROVAL_VALIDITY_DAYS %q", days)
		}
		cfg.ApprovalValidity = time.Duration(n) * 24 * time.Hour
	}

	pii, err := piiFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.PII = pii

	retention, err := retentionFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.Retention = retention

	return cfg, nil
}

// piiFromEnv parses PII_KEYS, a comma-separated list of version:base64 pairs,
// e.g. "1:X2t...,2:a9b...". PII_ACTIVE_KEY_VERSION selects the write key.
func piiFromEnv() (PII, error) {
	raw := os.Getenv("PII_KEYS")
	if raw == "" {
		return PII{}, fmt.Errorf("PII_KEYS is required")
	}

	keys := make(map[int][]byte)
	for _, pair := range strings.Split(raw, ",") {
		version, b64, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return PII{}, fmt.Errorf("malformed PII_KEYS entry %q", pair)
		}
		v, err := strconv.Atoi(version)
		if err != nil || v <= 0 {
			return PII{}, fmt.Errorf("invalid PII key version %q", version)
		}
		key, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return PII{}, fmt.Errorf("PII key v%d is not valid base64: %w", v, err)
		}
		if len(key) != 32 {
			return PII{}, fmt.Errorf("PII key v%d must be 32 bytes, got %d", v, len(key))
		}
		keys[v] = key
	}

	active := defaultActiveKeyVersion
	if raw := os.Getenv("PII_ACTIVE_KEY_VERSION"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return PII{}, fmt.Errorf("invalid PII_ACTIVE_KEY_VERSION %q", raw)
		}
		active = v
	}
	if _, ok := keys[active]; !ok {
		return PII{}, fmt.Errorf("active PII key version %d not present in PII_KEYS", active)
	}

	return PII{Keys: keys, ActiveVersion: active}, nil
}

// retentionFromEnv parses RETENTION_DAYS, a comma-separated list of
// entity:days overrides, e.g. "person:3650,audit_entry:2555".
func retentionFromEnv() (Retention, error) {
	r := Retention{
		Days:        make(map[string]int),
		DefaultDays: defaultRetentionDays,
	}

	if raw := os.Getenv("RETENTION_DEFAULT_DAYS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Retention{}, fmt.Errorf("invalid RETENTION_DEFAULT_DAYS %q", raw)
		}
		r.DefaultDays = n
	}

	raw := os.Getenv("RETENTION_DAYS")
	if raw == "" {
		return r, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		entity, days, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return Retention{}, fmt.Errorf("malformed RETENTION_DAYS entry %q", pair)
		}
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return Retention{}, fmt.Errorf("invalid retention days for %q", entity)
		}
		r.Days[entity] = n
	}
	return r, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
