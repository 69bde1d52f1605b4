package decrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorrupt signals that page bytes do not match the expected obfuscation
// layout. Callers must not retry; the issue owning the page fails instead.
var ErrCorrupt = errors.New("corrupt or unexpected page data")

// Scheme turns raw fetched page bytes into displayable image bytes.
// Implementations are pure functions of their input.
type Scheme interface {
	Decode(raw []byte) ([]byte, error)
}

// Identity passes bytes through unchanged. Used by sources that serve
// plain images.
type Identity struct{}

func (Identity) Decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("identity: empty input: %w", ErrCorrupt)
	}
	return raw, nil
}

// Base64 unwraps a base64 encoded image body.
type Base64 struct{}

func (Base64) Decode(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("base64: empty input: %w", ErrCorrupt)
	}

	out, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		out, err = base64.RawStdEncoding.DecodeString(string(trimmed))
	}
	if err != nil || len(out) == 0 {
		return nil, fmt.Errorf("base64: %w", ErrCorrupt)
	}

	return out, nil
}

// XOR descrambles bytes with a repeating key.
type XOR struct {
	Key []byte
}

func (x XOR) Decode(raw []byte) ([]byte, error) {
	if len(x.Key) == 0 {
		return nil, fmt.Errorf("xor: empty key: %w", ErrCorrupt)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("xor: empty input: %w", ErrCorrupt)
	}

	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b ^ x.Key[i%len(x.Key)]
	}

	return out, nil
}

// AESCBC decrypts an AES-CBC encrypted image without padding, the layout
// used by sources that ship key and IV out of band.
type AESCBC struct {
	Key []byte
	IV  []byte
}

func (a AESCBC) Decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aes-cbc: input not block aligned: %w", ErrCorrupt)
	}
	if len(a.IV) != aes.BlockSize {
		return nil, fmt.Errorf("aes-cbc: bad iv length %d: %w", len(a.IV), ErrCorrupt)
	}

	block, err := aes.NewCipher(a.Key)
	if err != nil {
		return nil, fmt.Errorf("aes-cbc: bad key: %w", ErrCorrupt)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, a.IV).CryptBlocks(out, raw)

	return out, nil
}

// SizePrefixed decrypts the container layout where the first 8 bytes hold
// the little-endian plaintext size, the next 16 the IV, and the rest an
// AES-256-CBC encrypted image body.
type SizePrefixed struct {
	Key []byte
}

func (s SizePrefixed) Decode(raw []byte) ([]byte, error) {
	const headerLen = 8 + aes.BlockSize
	if len(raw) <= headerLen {
		return nil, fmt.Errorf("size-prefixed: truncated header: %w", ErrCorrupt)
	}

	size := binary.LittleEndian.Uint64(raw[:8])
	iv := raw[8:headerLen]
	body := raw[headerLen:]

	if size == 0 || size > uint64(len(body)) {
		return nil, fmt.Errorf("size-prefixed: declared size %d exceeds body: %w", size, ErrCorrupt)
	}
	if len(body)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("size-prefixed: body not block aligned: %w", ErrCorrupt)
	}

	block, err := aes.NewCipher(s.Key)
	if err != nil {
		return nil, fmt.Errorf("size-prefixed: bad key: %w", ErrCorrupt)
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	return out[:size], nil
}
