package credentials

import (
	"crypto/rand"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeySize   = 32
	sealNonceSize = 24
	recordVersion = 1
)

var ErrSealedRecordInvalid = errors.New("sealed credentials record invalid")

// Sealer encrypts the secret parts of a credentials record at rest.
type Sealer struct {
	key [sealKeySize]byte
}

// NewSealer builds a Sealer from a 32 byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != sealKeySize {
		return nil, errors.Errorf("[NewSealer] seal key must be %d bytes, got %d", sealKeySize, len(key))
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [sealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < sealNonceSize+secretbox.Overhead {
		return nil, ErrSealedRecordInvalid
	}
	var nonce [sealNonceSize]byte
	copy(nonce[:], sealed[:sealNonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealedRecordInvalid
	}
	return plaintext, nil
}

type record struct {
	Version      int          `json:"v"`
	Identifier   string       `json:"identifier"`
	ProviderKind ProviderKind `json:"provider_kind"`
	Sealed       []byte       `json:"sealed"`
}

type sealedPart struct {
	Secret string            `json:"secret"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Marshal encodes c for a durable store. The identifier and provider kind stay readable.
func (s *Sealer) Marshal(c Credentials) ([]byte, error) {
	inner, err := json.Marshal(sealedPart{Secret: c.Secret, Extra: c.Extra})
	if err != nil {
		return nil, err
	}
	sealed, err := s.Seal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record{
		Version:      recordVersion,
		Identifier:   c.Identifier,
		ProviderKind: c.ProviderKind,
		Sealed:       sealed,
	})
}

// Unmarshal reverses Marshal.
func (s *Sealer) Unmarshal(data []byte) (*Credentials, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(ErrSealedRecordInvalid, "[Sealer.Unmarshal] %v", err)
	}
	if r.Version != recordVersion || !r.ProviderKind.Valid() {
		return nil, ErrSealedRecordInvalid
	}
	inner, err := s.Open(r.Sealed)
	if err != nil {
		return nil, err
	}
	var part sealedPart
	if err := json.Unmarshal(inner, &part); err != nil {
		return nil, errors.Wrapf(ErrSealedRecordInvalid, "[Sealer.Unmarshal] %v", err)
	}
	return &Credentials{
		Identifier:   r.Identifier,
		Secret:       part.Secret,
		ProviderKind: r.ProviderKind,
		Extra:        part.Extra,
	}, nil
}
