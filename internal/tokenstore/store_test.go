package tokenstore

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/db/models"
)

type fakeBackend struct {
	name     string
	tokens   map[string]string
	readErr  error
	writeErr error
	writes   int
	clears   int
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, tokens: map[string]string{}}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Read(key string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}

	token, ok := f.tokens[key]
	if !ok {
		return "", ErrTokenNotFound
	}

	return token, nil
}

func (f *fakeBackend) Write(key, token string) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}

	f.tokens[key] = token

	return nil
}

func (f *fakeBackend) Clear(key string) error {
	f.clears++
	delete(f.tokens, key)

	return nil
}

func TestTokenFirstHitWins(t *testing.T) {
	primary := newFakeBackend("database")
	secondary := newFakeBackend("session")

	primary.tokens["sid"] = "from-primary"
	secondary.tokens["sid"] = "from-secondary"

	store := New(primary, secondary)

	token, src, ok := store.TokenWithSource("sid")
	require.True(t, ok)
	assert.Equal(t, "from-primary", token)
	assert.Equal(t, "database", src)
}

func TestTokenFallsThroughFailingBackend(t *testing.T) {
	primary := newFakeBackend("database")
	primary.readErr = errors.New("connection refused")

	secondary := newFakeBackend("session")
	secondary.tokens["sid"] = "from-secondary"

	store := New(primary, secondary)

	token, src, ok := store.TokenWithSource("sid")
	require.True(t, ok)
	assert.Equal(t, "from-secondary", token)
	assert.Equal(t, "session", src)
}

func TestTokenMiss(t *testing.T) {
	store := New(newFakeBackend("database"), newFakeBackend("session"))

	_, ok := store.Token("sid")
	assert.False(t, ok)
}

func TestSaveTokenWritesAllSinks(t *testing.T) {
	primary := newFakeBackend("database")
	primary.writeErr = errors.New("disk full")

	secondary := newFakeBackend("session")

	store := New(primary, secondary)

	// a failing sink must not stop the others
	store.SaveToken("sid", "tok")

	assert.Equal(t, 1, primary.writes)
	assert.Equal(t, "tok", secondary.tokens["sid"])
}

func TestClearTokenClearsAllSinks(t *testing.T) {
	primary := newFakeBackend("database")
	secondary := newFakeBackend("session")

	store := New(primary, secondary)
	store.SaveToken("sid", "tok")
	store.ClearToken("sid")

	_, ok := store.Token("sid")
	assert.False(t, ok)
	assert.Equal(t, 1, primary.clears)
	assert.Equal(t, 1, secondary.clears)
}

func TestWithAppendsLowestPriority(t *testing.T) {
	primary := newFakeBackend("database")
	cookie := newFakeBackend("cookie")
	cookie.tokens["sid"] = "from-cookie"

	base := New(primary)
	derived := base.With(cookie)

	token, src, ok := derived.TokenWithSource("sid")
	require.True(t, ok)
	assert.Equal(t, "from-cookie", token)
	assert.Equal(t, "cookie", src)

	// the base store stays untouched
	_, ok = base.Token("sid")
	assert.False(t, ok)
}

func TestDatabaseBackendRoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuthToken{}))

	backend, err := NewDatabaseBackend(db, "secret", "salt")
	require.NoError(t, err)

	_, err = backend.Read("sid")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, backend.Write("sid", "bearer-token"))

	token, err := backend.Read("sid")
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", token)

	// stored ciphertext never contains the plaintext token
	var record models.AuthToken
	require.NoError(t, db.First(&record).Error)
	assert.NotContains(t, string(record.Ciphertext), "bearer-token")

	// overwrite
	require.NoError(t, backend.Write("sid", "rotated"))

	token, err = backend.Read("sid")
	require.NoError(t, err)
	assert.Equal(t, "rotated", token)

	require.NoError(t, backend.Clear("sid"))

	_, err = backend.Read("sid")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

type fakeJar struct {
	cookies map[string]string
	maxAge  time.Duration
}

func (j *fakeJar) Cookie(name string) string { return j.cookies[name] }

func (j *fakeJar) SetCookie(name, value string, maxAge time.Duration) {
	j.cookies[name] = value
	j.maxAge = maxAge
}

func (j *fakeJar) ClearCookie(name string) { delete(j.cookies, name) }

func TestCookieBackend(t *testing.T) {
	jar := &fakeJar{cookies: map[string]string{}}
	backend := NewCookieBackend(jar)

	_, err := backend.Read("sid")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, backend.Write("sid", "tok"))
	assert.Equal(t, CookieMaxAge, jar.maxAge)

	token, err := backend.Read("sid")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, backend.Clear("sid"))

	_, err = backend.Read("sid")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
