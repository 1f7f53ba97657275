// Package token 用量令牌的加密封装，客户端无法读取或伪造
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coursebot/backend/internal/domain/usage"
	"github.com/coursebot/backend/internal/infrastructure/config"
)

const (
	version = "v1"
	keySize = 32
)

// ErrInvalidToken 令牌格式错误、被篡改或密钥不匹配
var ErrInvalidToken = errors.New("invalid usage token")

// Sealer 用量令牌加解密器（AES-256-GCM）
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer 从密钥文件创建，文件不存在时生成新密钥
func NewSealer(cfg *config.UsageConfig) (*Sealer, error) {
	key, err := loadOrGenerateKey(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load or generate key: %w", err)
	}
	return NewSealerWithKey(key)
}

// NewSealerWithKey 使用给定密钥创建
func NewSealerWithKey(key []byte) (*Sealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("usage key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// loadOrGenerateKey 加载或生成加密密钥
func loadOrGenerateKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	// 仅所有者可读写
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to save key: %w", err)
	}
	return key, nil
}

// Seal 加密用量记录，输出 "v1." + base64url(nonce || ciphertext)
func (s *Sealer) Seal(r usage.Record) (string, error) {
	plaintext, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal usage record: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, plaintext, []byte(version))
	return version + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open 解密令牌，任何异常都返回 ErrInvalidToken
func (s *Sealer) Open(token string) (usage.Record, error) {
	var r usage.Record

	payload, ok := strings.CutPrefix(token, version+".")
	if !ok {
		return r, ErrInvalidToken
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return r, ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead() {
		return r, ErrInvalidToken
	}
	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(version))
	if err != nil {
		return r, ErrInvalidToken
	}
	if err := json.Unmarshal(plaintext, &r); err != nil {
		return r, ErrInvalidToken
	}
	return r, nil
}
