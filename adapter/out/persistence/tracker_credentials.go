package persistence

import (
	"bytes"
	"errors"
	"fmt"

	"tracker_server/core/domain"
	"tracker_server/pkg/crypto"

	"github.com/goccy/go-json"
)

var ErrSealedWithoutKey = errors.New("credentials are encrypted but no encryption key is configured")

// credentialCodec converts token bundles to and from the JSONB column.
// With an encryptor the column holds a JSON string "enc:v1:..."; without one
// it holds the plain object. Plain objects are always readable so rows written
// before encryption was enabled keep working.
type credentialCodec struct {
	enc *crypto.Encryptor
}

func (c credentialCodec) encode(creds domain.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	if c.enc == nil {
		return string(raw), nil
	}
	sealed, err := c.enc.Seal(raw)
	if err != nil {
		return "", fmt.Errorf("seal credentials: %w", err)
	}
	wrapped, err := json.Marshal(sealed)
	if err != nil {
		return "", err
	}
	return string(wrapped), nil
}

func (c credentialCodec) decode(raw []byte) (domain.Credentials, error) {
	var creds domain.Credentials
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return creds, nil
	}

	if raw[0] != '"' {
		if err := json.Unmarshal(raw, &creds); err != nil {
			return creds, fmt.Errorf("decode credentials: %w", err)
		}
		return creds, nil
	}

	var sealed string
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return creds, fmt.Errorf("decode credentials: %w", err)
	}
	if !crypto.IsSealed(sealed) {
		return creds, fmt.Errorf("decode credentials: %w", crypto.ErrInvalidCiphertext)
	}
	if c.enc == nil {
		return creds, ErrSealedWithoutKey
	}
	plain, err := c.enc.Open(sealed)
	if err != nil {
		return creds, fmt.Errorf("open credentials: %w", err)
	}
	if err := json.Unmarshal(plain, &creds); err != nil {
		return creds, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}
