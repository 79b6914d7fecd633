package keychain

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestFingerprintCodecRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("failed to convert public key: %v", err)
	}

	fp := Fingerprint(pub)
	name, err := EncodeFingerprint(fp)
	if err != nil {
		t.Fatalf("EncodeFingerprint failed: %v", err)
	}
	if len(name) != 64 || strings.ToLower(name) != name {
		t.Fatalf("expected 64 lowercase hex characters, got %q", name)
	}
	if strings.ContainsAny(name, ":/+=") {
		t.Fatalf("encoded name %q is not safe as a tree entry name", name)
	}

	back, err := DecodeFingerprint(name)
	if err != nil {
		t.Fatalf("DecodeFingerprint failed: %v", err)
	}
	if back != fp {
		t.Fatalf("expected %q, got %q", fp, back)
	}

	again, err := EncodeFingerprint(back)
	if err != nil || again != name {
		t.Fatalf("expected %q, got %q (%v)", name, again, err)
	}
}

func TestFingerprintCodecRejectsGarbage(t *testing.T) {
	if _, err := EncodeFingerprint("MD5:aa:bb"); err == nil {
		t.Error("expected an error for a fingerprint without the SHA256 prefix")
	}
	if _, err := EncodeFingerprint("SHA256:not base64!"); err == nil {
		t.Error("expected an error for a malformed digest")
	}
	if _, err := DecodeFingerprint("xyz"); err == nil {
		t.Error("expected an error for a non-hex entry name")
	}
	if _, err := DecodeFingerprint(""); err == nil {
		t.Error("expected an error for an empty entry name")
	}
}
