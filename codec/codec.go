// Package codec reads and writes the platform's line-oriented entity
// files, optionally encrypted with AES-256-GCM.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"

	"github.com/contentforge/forge/pkg/apierror"
)

// Fetch reads the file at path and returns its text. A missing file
// yields empty text, not an error. When key is non-empty the file body
// is decrypted with it.
func Fetch(path, key string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apierror.Internalf("codec: read %s: %v", path, err)
	}
	if key == "" {
		return string(raw), nil
	}
	text, err := decrypt(string(raw), key)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Save rewrites the file at path with text, creating parent directories
// as needed. The write goes to a temp file first and is renamed into
// place so a crash mid-save leaves the previous file intact. When key
// is non-empty the body is encrypted with it.
func Save(path, text, key string) error {
	body := text
	if key != "" {
		enc, err := encrypt(text, key)
		if err != nil {
			return err
		}
		body = enc
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apierror.Internalf("codec: create dir %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return apierror.Internalf("codec: create temp for %s: %v", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apierror.Internalf("codec: write %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apierror.Internalf("codec: close %s: %v", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apierror.Internalf("codec: rename into %s: %v", path, err)
	}
	return nil
}

// deriveKey turns a passphrase into an AES-256 key.
func deriveKey(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// encrypt seals text with AES-256-GCM and returns base64(nonce+ciphertext).
func encrypt(text, key string) (string, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", apierror.Internalf("codec: create cipher: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", apierror.Internalf("codec: create GCM: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apierror.Internalf("codec: generate nonce: %v", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(text), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt.
func decrypt(body, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", apierror.Internalf("codec: base64 decode: %v", err)
	}
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", apierror.Internalf("codec: create cipher: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", apierror.Internalf("codec: create GCM: %v", err)
	}
	nonceSize := aead.NonceSize()
	if len(raw) < nonceSize {
		return "", apierror.Internalf("codec: ciphertext too short")
	}
	nonce, ct := raw[:nonceSize], raw[nonceSize:]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", apierror.Internalf("codec: decryption failed: %v", err)
	}
	return string(plain), nil
}

// Remove deletes the file at path. Missing files are not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apierror.Internalf("codec: remove %s: %v", path, err)
	}
	return nil
}
