package crypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Encryptor seals uploaded files at rest using an age X25519 identity.
type Encryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor parses an AGE-SECRET-KEY identity. An empty key generates an
// ephemeral identity, which only suits a single process (tests, dev).
func NewEncryptor(key string) (*Encryptor, error) {
	var (
		identity *age.X25519Identity
		err      error
	)
	if key == "" {
		identity, err = age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
	} else {
		identity, err = age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
	}

	return &Encryptor{
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// GenerateKey returns a new identity string suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return identity.String(), nil
}

// Seal streams src through age into dst.
func (e *Encryptor) Seal(dst io.Writer, src io.Reader) error {
	w, err := age.Encrypt(dst, e.recipient)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing encryptor: %w", err)
	}
	return nil
}

// Open returns a reader yielding the plaintext of src.
func (e *Encryptor) Open(src io.Reader) (io.Reader, error) {
	r, err := age.Decrypt(src, e.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}
	return r, nil
}

func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Seal(&buf, bytes.NewReader(plaintext)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := e.Open(bytes.NewReader(ciphertext))
	if err != nil {
		return nil, err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	return plaintext, nil
}

func (e *Encryptor) PublicKey() string {
	return e.recipient.String()
}
