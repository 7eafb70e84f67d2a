package zwave

import (
	"encoding/binary"
	"io"

	"github.com/flynn/noise"
)

// CacheCipher encrypts config-cache payloads at rest using the Noise
// AESGCM cipher state directly, without running any handshake: a config
// cache has exactly one party, so there's no peer to hand-shake with. A
// key derived once (e.g. from a passphrase via the backend's own KDF)
// seeds the AEAD directly, the same cipher primitive, none of the DH
// machinery.
type CacheCipher struct {
	cipher noise.Cipher
	nonce  uint64
}

// NewCacheCipher builds a CacheCipher from a 32-byte key.
func NewCacheCipher(key [32]byte) *CacheCipher {
	return &CacheCipher{cipher: noise.CipherAESGCM.Cipher(key)}
}

// Seal encrypts plaintext, prepending a 4-byte big-endian ciphertext
// length so Open can re-frame the chunk on the way back in. Each call
// advances an internal nonce counter; a CacheCipher is only
// safe to reuse across calls that all originate from the same Save, not
// across independently-loaded caches (callers construct a fresh
// CacheCipher per encrypt/decrypt pass keyed by the same static key).
func (c *CacheCipher) Seal(plaintext []byte) []byte {
	ciphertext := c.cipher.Encrypt(nil, c.nonce, nil, plaintext)
	c.nonce++

	out := make([]byte, 4+len(ciphertext))
	binary.BigEndian.PutUint32(out[:4], uint32(len(ciphertext)))
	copy(out[4:], ciphertext)
	return out
}

// Open decrypts one Seal-framed chunk from the front of data, returning
// the plaintext and whatever bytes followed it.
func (c *CacheCipher) Open(data []byte) (plaintext, remaining []byte, err error) {
	if len(data) < 4 {
		return nil, data, io.ErrShortBuffer
	}
	length := int(binary.BigEndian.Uint32(data[:4]))
	if len(data) < 4+length {
		return nil, data, io.ErrShortBuffer
	}
	plaintext, err = c.cipher.Decrypt(nil, c.nonce, nil, data[4:4+length])
	if err != nil {
		return nil, nil, err
	}
	c.nonce++
	return plaintext, data[4+length:], nil
}
