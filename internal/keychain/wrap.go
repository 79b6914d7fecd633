package keychain

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
)

var oaepLabel = []byte("veil keychain")

// rsaPublicKey extracts the RSA key behind an SSH public key.
func rsaPublicKey(pub ssh.PublicKey) (*rsa.PublicKey, error) {
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrUnsupportedKey, pub.Type())
	}
	rsaPub, ok := cpk.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrUnsupportedKey, pub.Type())
	}
	return rsaPub, nil
}

func wrapKey(pub ssh.PublicKey, key []byte) ([]byte, error) {
	rsaPub, err := rsaPublicKey(pub)
	if err != nil {
		return nil, err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaPub, key, oaepLabel)
	if err != nil {
		return nil, fmt.Errorf("wrapping key for %s: %w", Fingerprint(pub), err)
	}
	return wrapped, nil
}

func unwrapKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, oaepLabel)
}

// ParsePrivateKey parses an RSA private key in OpenSSH, PKCS#1 or PKCS#8 PEM
// form. A protected key with no passphrase fails with ErrPassphraseRequired.
func ParsePrivateKey(data, passphrase []byte) (*rsa.PrivateKey, error) {
	var (
		key any
		err error
	)
	if len(passphrase) == 0 {
		key, err = ssh.ParseRawPrivateKey(data)
	} else {
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	}

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, kerrors.ErrPassphraseRequired
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is %T", kerrors.ErrUnsupportedKey, key)
	}
	return rsaKey, nil
}
