// Package pii implements the personal-data protection layer: field-level
// encryption at rest (Codec), the per-entity registry of protected fields
// (FieldRegistry), and role-gated presentational masking (masker functions).
package pii

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"amparo/internal/platform/config"
)

// Carrier is implemented by records holding encrypted fields. PIIFields
// returns pointers into the record so the codec can rewrite values in place;
// a nil entry value means the field is absent and is left untouched.
type Carrier interface {
	EntityType() string
	PIIFields() map[string]*string
	EncryptionKeyVersion() int
	SetEncryptionKeyVersion(version int)
}

// envelopePrefix marks an encrypted value. The full envelope is
// "enc:v<version>:<base64(nonce||ciphertext)>"; the explicit version segment
// doubles as the key-version tag and disambiguates the envelope from
// plaintext that happens to start with the prefix.
const envelopePrefix = "enc:v"

const hkdfInfoFieldKey = "amparo/pii/field-key"

// Codec encrypts and decrypts the PII fields of a record. Stateless apart
// from the configured keyring; the key version used for a record is stamped
// onto the record itself.
type Codec struct {
	keys    map[int][]byte
	active  int
	logger  *slog.Logger
	metrics *Metrics
}

// NewCodec derives one AEAD key per configured key version. Master keys are
// never used directly; HKDF separates the field-encryption keys from any
// other use of the same material.
func NewCodec(cfg config.PII, logger *slog.Logger, metrics *Metrics) (*Codec, error) {
	if len(cfg.Keys) == 0 {
		return nil, fmt.Errorf("pii: no encryption keys configured")
	}
	if _, ok := cfg.Keys[cfg.ActiveVersion]; !ok {
		return nil, fmt.Errorf("pii: active key version %d not configured", cfg.ActiveVersion)
	}

	keys := make(map[int][]byte, len(cfg.Keys))
	for version, master := range cfg.Keys {
		key := make([]byte, chacha20poly1305.KeySize)
		r := hkdf.New(sha256.New, master, nil, []byte(hkdfInfoFieldKey))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("pii: derive key v%d: %w", version, err)
		}
		keys[version] = key
	}

	return &Codec{keys: keys, active: cfg.ActiveVersion, logger: logger, metrics: metrics}, nil
}

// ActiveKeyVersion returns the version new ciphertexts are written with.
func (c *Codec) ActiveKeyVersion() int { return c.active }

// Encrypt replaces every non-nil plaintext PII field of the record with an
// envelope ciphertext and stamps the active key version. Already-encrypted
// fields are left untouched, so running Encrypt twice is a no-op.
func (c *Codec) Encrypt(record Carrier) error {
	for field, value := range record.PIIFields() {
		if value == nil || *value == "" || IsEncrypted(*value) {
			continue
		}
		sealed, err := c.seal(record.EntityType(), field, *value)
		if err != nil {
			return fmt.Errorf("pii: encrypt %s.%s: %w", record.EntityType(), field, err)
		}
		*value = sealed
		if c.metrics != nil {
			c.metrics.IncFieldsEncrypted()
		}
	}
	record.SetEncryptionKeyVersion(c.active)
	return nil
}

// Decrypt replaces every envelope-tagged PII field with its plaintext. A
// field that fails to decrypt (rotated-away key, corrupted payload) is set
// to nil and a warning is logged; the read path never fails and the raw
// ciphertext is never exposed.
func (c *Codec) Decrypt(record Carrier) {
	for field, value := range record.PIIFields() {
		if value == nil || !IsEncrypted(*value) {
			continue
		}
		plaintext, err := c.open(record.EntityType(), field, *value)
		if err != nil {
			// Empty string stands in for null; the store boundary maps ""
			// back to NULL.
			*value = ""
			c.logger.Warn("pii decryption failed, field nulled",
				"entity_type", record.EntityType(),
				"field", field,
				"error", err,
			)
			if c.metrics != nil {
				c.metrics.IncDecryptFailures(record.EntityType())
			}
			continue
		}
		*value = plaintext
	}
}

func (c *Codec) seal(entityType, field, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.keys[c.active])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	// Bind the ciphertext to its entity type and field name so a value
	// copied between columns fails authentication.
	ct := aead.Seal(nonce, nonce, []byte(plaintext), aad(entityType, field))
	return fmt.Sprintf("%s%d:%s", envelopePrefix, c.active, base64.StdEncoding.EncodeToString(ct)), nil
}

func (c *Codec) open(entityType, field, envelope string) (string, error) {
	version, payload, err := parseEnvelope(envelope)
	if err != nil {
		return "", err
	}
	key, ok := c.keys[version]
	if !ok {
		return "", fmt.Errorf("key version %d not in keyring", version)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	if len(payload) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return "", fmt.Errorf("payload too short")
	}
	nonce, ct := payload[:chacha20poly1305.NonceSizeX], payload[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ct, aad(entityType, field))
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plaintext), nil
}

func aad(entityType, field string) []byte {
	return []byte(entityType + "." + field)
}

// IsEncrypted reports whether the value is a structurally valid envelope:
// prefix, positive integer version, and decodable base64 payload of at least
// nonce length. The structural check keeps plaintext that merely starts with
// the prefix from being treated as ciphertext.
func IsEncrypted(value string) bool {
	_, _, err := parseEnvelope(value)
	return err == nil
}

func parseEnvelope(value string) (version int, payload []byte, err error) {
	rest, ok := strings.CutPrefix(value, envelopePrefix)
	if !ok {
		return 0, nil, fmt.Errorf("not an envelope")
	}
	versionStr, b64, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, nil, fmt.Errorf("missing payload segment")
	}
	version, err = strconv.Atoi(versionStr)
	if err != nil || version <= 0 {
		return 0, nil, fmt.Errorf("invalid key version %q", versionStr)
	}
	payload, err = base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid payload encoding")
	}
	if len(payload) < chacha20poly1305.NonceSizeX {
		return 0, nil, fmt.Errorf("payload too short")
	}
	return version, payload, nil
}
