package tokenstore

import (
	"crypto/rand"
	"time"

	"github.com/gofiber/storage"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/db/models"
)

// DatabaseBackend persists tokens in the auth_tokens table, encrypted at rest.
type DatabaseBackend struct {
	db   *gorm.DB
	aead cipherAEAD
}

// NewDatabaseBackend derives the token encryption key from secret and salt
// and returns a gorm backed token sink.
func NewDatabaseBackend(db *gorm.DB, secret, salt string) (*DatabaseBackend, error) {
	if db == nil {
		return nil, errors.New("database connection is nil")
	}

	key := argon2.IDKey([]byte(secret), []byte(salt), 1, 64*1024, 4, chacha20poly1305.KeySize)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token cipher")
	}

	return &DatabaseBackend{db: db, aead: aead}, nil
}

// Name implements Backend.
func (b *DatabaseBackend) Name() string { return "database" }

// Read implements Backend.
func (b *DatabaseBackend) Read(key string) (string, error) {
	var record models.AuthToken

	result := b.db.Where("key = ?", key).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrTokenNotFound
		}

		return "", result.Error
	}

	return b.open(record.Ciphertext)
}

// Write implements Backend.
func (b *DatabaseBackend) Write(key, token string) error {
	ciphertext, err := b.seal(token)
	if err != nil {
		return err
	}

	var record models.AuthToken

	result := b.db.Where("key = ?", key).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return b.db.Create(&models.AuthToken{Key: key, Ciphertext: ciphertext}).Error
	}

	if result.Error != nil {
		return result.Error
	}

	record.Ciphertext = ciphertext

	return b.db.Save(&record).Error
}

// Clear implements Backend.
func (b *DatabaseBackend) Clear(key string) error {
	return b.db.Where("key = ?", key).Delete(&models.AuthToken{}).Error
}

type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

func (b *DatabaseBackend) seal(token string) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	return b.aead.Seal(nonce, nonce, []byte(token), nil), nil
}

func (b *DatabaseBackend) open(ciphertext []byte) (string, error) {
	nonceSize := b.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("token ciphertext too short")
	}

	plaintext, err := b.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt token")
	}

	return string(plaintext), nil
}

// StorageBackend keeps tokens in the session storage with an expiry.
type StorageBackend struct {
	storage storage.Storage
	ttl     time.Duration
}

// NewStorageBackend wraps a gofiber storage as a session scoped token sink.
func NewStorageBackend(s storage.Storage, ttl time.Duration) *StorageBackend {
	return &StorageBackend{storage: s, ttl: ttl}
}

// Name implements Backend.
func (b *StorageBackend) Name() string { return "session" }

func (b *StorageBackend) storageKey(key string) string {
	return "token:" + key
}

// Read implements Backend.
func (b *StorageBackend) Read(key string) (string, error) {
	data, err := b.storage.Get(b.storageKey(key))
	if err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", ErrTokenNotFound
	}

	return string(data), nil
}

// Write implements Backend.
func (b *StorageBackend) Write(key, token string) error {
	return b.storage.Set(b.storageKey(key), []byte(token), b.ttl)
}

// Clear implements Backend.
func (b *StorageBackend) Clear(key string) error {
	return b.storage.Delete(b.storageKey(key))
}

// CookieName is the cookie the token travels in.
const CookieName = "authToken"

// CookieMaxAge caps the token cookie lifetime.
const CookieMaxAge = 24 * time.Hour

// CookieJar is the minimal request cookie surface the cookie backend needs.
// The web layer adapts a fiber context to it per request.
type CookieJar interface {
	Cookie(name string) string
	SetCookie(name, value string, maxAge time.Duration)
	ClearCookie(name string)
}

// CookieBackend reads and writes the token cookie of a single request.
type CookieBackend struct {
	jar CookieJar
}

// NewCookieBackend binds a cookie backend to one request's jar.
func NewCookieBackend(jar CookieJar) *CookieBackend {
	return &CookieBackend{jar: jar}
}

// Name implements Backend.
func (b *CookieBackend) Name() string { return "cookie" }

// Read implements Backend.
func (b *CookieBackend) Read(_ string) (string, error) {
	token := b.jar.Cookie(CookieName)
	if token == "" {
		return "", ErrTokenNotFound
	}

	return token, nil
}

// Write implements Backend.
func (b *CookieBackend) Write(_, token string) error {
	b.jar.SetCookie(CookieName, token, CookieMaxAge)
	return nil
}

// Clear implements Backend.
func (b *CookieBackend) Clear(_ string) error {
	b.jar.ClearCookie(CookieName)
	return nil
}
