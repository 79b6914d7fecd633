package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/veil/internal/errors"
)

const (
	// KeySize is the symmetric key length (AES-256).
	KeySize = 32

	// IVSize is the length of the IV prefixed to every ciphertext.
	IVSize = aes.BlockSize

	// chunkSize must stay a multiple of aes.BlockSize.
	chunkSize = 4096 * aes.BlockSize
)

// StreamFunc is the shape shared by NewEncryptReader and NewDecryptReader.
type StreamFunc func(key []byte, r io.Reader) (io.Reader, error)

// GenerateKey returns a new random symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate symmetric key: %w", err)
	}
	return key, nil
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d bytes", kerrors.ErrInvalidKeyLength, KeySize, len(key))
	}
	return aes.NewCipher(key)
}

type encryptReader struct {
	src     io.Reader
	mode    cipher.BlockMode
	chunk   []byte
	pending []byte
	done    bool
}

// NewEncryptReader returns a reader yielding a fresh IV followed by the
// encryption of everything read from r.
func NewEncryptReader(key []byte, r io.Reader) (io.Reader, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	return &encryptReader{
		src:     r,
		mode:    cipher.NewCBCEncrypter(block, iv),
		chunk:   make([]byte, chunkSize),
		pending: iv,
	}, nil
}

func (r *encryptReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *encryptReader) fill() error {
	n, err := io.ReadFull(r.src, r.chunk)
	switch err {
	case nil:
		r.mode.CryptBlocks(r.chunk, r.chunk)
		r.pending = r.chunk
	case io.EOF, io.ErrUnexpectedEOF:
		last := pad(r.chunk[:n])
		r.mode.CryptBlocks(last, last)
		r.pending = last
		r.done = true
	default:
		return err
	}
	return nil
}

// pad returns a new slice holding data followed by PKCS#7 padding.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: no complete block", kerrors.ErrCipher)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, fmt.Errorf("%w: bad padding", kerrors.ErrCipher)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", kerrors.ErrCipher)
		}
	}
	return data[:len(data)-n], nil
}

type decryptState int

const (
	accumulatingIV decryptState = iota
	decrypting
	drained
)

type decryptReader struct {
	src     io.Reader
	block   cipher.Block
	mode    cipher.BlockMode
	state   decryptState
	iv      []byte
	chunk   []byte
	held    []byte
	pending []byte
}

// NewDecryptReader returns a reader yielding the plaintext of r, which must
// start with the IV written by NewEncryptReader. Nothing is read from r until
// the first Read.
func NewDecryptReader(key []byte, r io.Reader) (io.Reader, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	return &decryptReader{
		src:   r,
		block: block,
		iv:    make([]byte, 0, IVSize),
		chunk: make([]byte, chunkSize),
	}, nil
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		var err error
		switch r.state {
		case accumulatingIV:
			err = r.accumulate()
		case decrypting:
			err = r.decrypt()
		case drained:
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// accumulate buffers input until a whole IV is available.
func (r *decryptReader) accumulate() error {
	n, err := r.src.Read(r.iv[len(r.iv):IVSize])
	r.iv = r.iv[:len(r.iv)+n]
	if len(r.iv) == IVSize {
		r.mode = cipher.NewCBCDecrypter(r.block, r.iv)
		r.state = decrypting
		return nil
	}
	if err == io.EOF {
		return fmt.Errorf("%w: got %d bytes", kerrors.ErrShortInput, len(r.iv))
	}
	return err
}

func (r *decryptReader) decrypt() error {
	n, err := io.ReadFull(r.src, r.chunk)
	final := false
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		final = true
	default:
		return err
	}

	data := r.chunk[:n]
	if n%aes.BlockSize != 0 {
		return fmt.Errorf("%w: length is not a multiple of the block size", kerrors.ErrCipher)
	}
	r.mode.CryptBlocks(data, data)

	out := make([]byte, 0, len(r.held)+n)
	out = append(out, r.held...)
	out = append(out, data...)

	if final {
		plain, err := unpad(out)
		if err != nil {
			return err
		}
		r.pending = plain
		r.held = nil
		r.state = drained
		return nil
	}

	// hold back the last block: it may carry the padding
	split := len(out) - aes.BlockSize
	r.pending = out[:split]
	r.held = out[split:]
	return nil
}
