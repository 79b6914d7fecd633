package cipher

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
)

// Encoding is the text encoding applied to string ciphertexts.
type Encoding int

const (
	Raw Encoding = iota
	Hex
	Base64
)

func (e Encoding) String() string {
	switch e {
	case Hex:
		return "hex"
	case Base64:
		return "base64"
	default:
		return "raw"
	}
}

// StringFunc is the shape shared by EncryptString and DecryptString.
type StringFunc func(key []byte, s string, enc Encoding) (string, error)

// EncryptString encrypts s and encodes the ciphertext with enc.
func EncryptString(key []byte, s string, enc Encoding) (string, error) {
	r, err := NewEncryptReader(key, strings.NewReader(s))
	if err != nil {
		return "", err
	}
	ct, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	switch enc {
	case Hex:
		return hex.EncodeToString(ct), nil
	case Base64:
		return base64.StdEncoding.EncodeToString(ct), nil
	default:
		return string(ct), nil
	}
}

// DecryptString decodes s with enc and decrypts the result.
func DecryptString(key []byte, s string, enc Encoding) (string, error) {
	var ct []byte
	var err error
	switch enc {
	case Hex:
		ct, err = hex.DecodeString(s)
	case Base64:
		// commit messages come back with a trailing newline
		ct, err = base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	default:
		ct = []byte(s)
	}
	if err != nil {
		return "", fmt.Errorf("%w: invalid %s text: %v", kerrors.ErrCipher, enc, err)
	}

	r, err := NewDecryptReader(key, bytes.NewReader(ct))
	if err != nil {
		return "", err
	}
	pt, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
