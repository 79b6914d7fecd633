package cipher

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return key
}

func encrypt(t *testing.T, key, plaintext []byte) []byte {
	t.Helper()
	r, err := NewEncryptReader(key, bytes.NewReader(plaintext))
	if err != nil {
		t.Fatalf("NewEncryptReader failed: %v", err)
	}
	ct, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading ciphertext failed: %v", err)
	}
	return ct
}

func decrypt(key, ciphertext []byte) ([]byte, error) {
	r, err := NewDecryptReader(key, bytes.NewReader(ciphertext))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t)

	sizes := []int{0, 1, 15, 16, 17, 31, 32, 1000, chunkSize - 1, chunkSize, chunkSize + 1, 3*chunkSize + 7}
	for _, size := range sizes {
		plaintext := make([]byte, size)
		if _, err := rand.Read(plaintext); err != nil {
			t.Fatalf("rand.Read failed: %v", err)
		}

		ct := encrypt(t, key, plaintext)
		if len(ct) != IVSize+(size/16+1)*16 {
			t.Errorf("size %d: unexpected ciphertext length %d", size, len(ct))
		}

		got, err := decrypt(key, ct)
		if err != nil {
			t.Fatalf("size %d: decrypt failed: %v", size, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}

func TestRoundTripOneByteReads(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("the IV arrives one byte at a time")

	ct := encrypt(t, key, plaintext)

	r, err := NewDecryptReader(key, iotest.OneByteReader(bytes.NewReader(ct)))
	if err != nil {
		t.Fatalf("NewDecryptReader failed: %v", err)
	}
	got, err := io.ReadAll(iotest.OneByteReader(r))
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("expected %q, got %q", plaintext, got)
	}
}

func TestIVUniqueness(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same plaintext, same key")

	first := encrypt(t, key, plaintext)
	second := encrypt(t, key, plaintext)

	if bytes.Equal(first, second) {
		t.Fatal("two encryptions produced identical ciphertext")
	}
	if bytes.Equal(first[:IVSize], second[:IVSize]) {
		t.Fatal("two encryptions reused the same IV")
	}
}

func TestDecryptShortInput(t *testing.T) {
	key := testKey(t)

	for _, n := range []int{0, 1, 15} {
		_, err := decrypt(key, make([]byte, n))
		if !errors.Is(err, kerrors.ErrShortInput) {
			t.Errorf("%d bytes: expected ErrShortInput, got %v", n, err)
		}
	}
}

func TestDecryptIVOnly(t *testing.T) {
	key := testKey(t)

	_, err := decrypt(key, make([]byte, IVSize))
	if !errors.Is(err, kerrors.ErrCipher) {
		t.Fatalf("expected ErrCipher, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := testKey(t)
	ct := encrypt(t, key, []byte("secret"))

	// a wrong key yields valid padding with probability about 1/256; try several
	failures := 0
	for i := 0; i < 8; i++ {
		if _, err := decrypt(testKey(t), ct); errors.Is(err, kerrors.ErrCipher) {
			failures++
		}
	}
	if failures == 0 {
		t.Fatal("expected wrong keys to fail with ErrCipher")
	}
}

func TestDecryptTruncatedBlock(t *testing.T) {
	key := testKey(t)
	ct := encrypt(t, key, []byte("truncate me please"))

	_, err := decrypt(key, ct[:len(ct)-3])
	if !errors.Is(err, kerrors.ErrCipher) {
		t.Fatalf("expected ErrCipher, got %v", err)
	}
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := NewEncryptReader(make([]byte, 16), bytes.NewReader(nil))
	if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}

	_, err = NewDecryptReader(make([]byte, 31), bytes.NewReader(nil))
	if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestPadUnpad(t *testing.T) {
	for n := 0; n <= 33; n++ {
		data := bytes.Repeat([]byte{0xAB}, n)
		padded := pad(data)
		if len(padded)%16 != 0 || len(padded) <= n {
			t.Fatalf("pad(%d) returned %d bytes", n, len(padded))
		}
		got, err := unpad(padded)
		if err != nil {
			t.Fatalf("unpad(%d) failed: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("unpad(%d) mismatch", n)
		}
	}
}
