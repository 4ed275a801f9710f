// Package sealed encrypts and decrypts the sensitive part of a binding's
// configuration with an age X25519 identity. Ciphertext is base64 so it can
// live in YAML, BSON and Redis string values alike.
package sealed

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"

	"switchboard/internal/api"
)

// Sealer encrypts sensitive configuration to its own recipient and decrypts
// it with the matching identity.
type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// New returns a Sealer for the given identity.
func New(identity *age.X25519Identity) *Sealer {
	return &Sealer{identity: identity, recipient: identity.Recipient()}
}

// GenerateIdentity creates a fresh X25519 identity.
func GenerateIdentity() (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	return identity, nil
}

// FormatIdentity renders an identity in the age key file format.
func FormatIdentity(identity *age.X25519Identity, created time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# created: %s\n", created.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "# public key: %s\n", identity.Recipient().String())
	b.WriteString(identity.String())
	b.WriteString("\n")
	return b.String()
}

// ParseIdentity reads the first X25519 identity from an age key file.
func ParseIdentity(r io.Reader) (*age.X25519Identity, error) {
	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	for _, identity := range identities {
		if x, ok := identity.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, errors.New("no X25519 identity found")
}

// LoadIdentity loads the identity from the environment variable envVar when
// it is set and non-empty, otherwise from path.
func LoadIdentity(path, envVar string) (*age.X25519Identity, error) {
	if envVar != "" {
		if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
			return ParseIdentity(strings.NewReader(value))
		}
	}
	if path == "" {
		return nil, errors.New("no identity file or environment variable configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer f.Close()
	return ParseIdentity(f)
}

// Recipient returns the public key sensitive configuration is sealed to.
func (s *Sealer) Recipient() string {
	return s.recipient.String()
}

// Encrypt seals a configuration map.
func (s *Sealer) Encrypt(config map[string]interface{}) (string, error) {
	plaintext, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encoding sensitive config: %w", err)
	}

	var ciphertext bytes.Buffer
	w, err := age.Encrypt(&ciphertext, s.recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt opens a sealed configuration map. Every failure is returned as
// *api.DecryptionError. An empty ciphertext yields an empty map.
func (s *Sealer) Decrypt(ciphertext string) (map[string]interface{}, error) {
	if ciphertext == "" {
		return map[string]interface{}{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, &api.DecryptionError{Err: fmt.Errorf("decoding base64: %w", err)}
	}

	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return nil, &api.DecryptionError{Err: err}
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, &api.DecryptionError{Err: fmt.Errorf("reading plaintext: %w", err)}
	}

	config := map[string]interface{}{}
	if err := json.Unmarshal(plaintext, &config); err != nil {
		return nil, &api.DecryptionError{Err: fmt.Errorf("decoding plaintext: %w", err)}
	}
	return config, nil
}
