package keychain

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

const fingerprintPrefix = "SHA256:"

// Fingerprint returns the SSH SHA256 fingerprint of pub, "SHA256:<base64>".
func Fingerprint(pub ssh.PublicKey) string {
	return ssh.FingerprintSHA256(pub)
}

// EncodeFingerprint turns a SHA256 fingerprint into a name safe for a tree
// entry: the lowercase hex of the digest.
func EncodeFingerprint(fp string) (string, error) {
	digest, ok := strings.CutPrefix(fp, fingerprintPrefix)
	if !ok {
		return "", fmt.Errorf("fingerprint %q: missing %s prefix", fp, fingerprintPrefix)
	}
	raw, err := base64.RawStdEncoding.DecodeString(digest)
	if err != nil {
		return "", fmt.Errorf("fingerprint %q: %w", fp, err)
	}
	return hex.EncodeToString(raw), nil
}

// DecodeFingerprint reverses EncodeFingerprint.
func DecodeFingerprint(name string) (string, error) {
	raw, err := hex.DecodeString(name)
	if err != nil {
		return "", fmt.Errorf("keychain entry %q: %w", name, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("keychain entry %q: empty digest", name)
	}
	return fingerprintPrefix + base64.RawStdEncoding.EncodeToString(raw), nil
}
