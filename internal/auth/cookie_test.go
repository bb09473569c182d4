package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *CookieCodec {
	t.Helper()

	codec, err := NewCookieCodec([]byte("0123456789abcdef0123456789abcdef"), true, time.Hour)
	require.NoError(t, err)

	return codec
}

func TestCookieCodecRoundTrip(t *testing.T) {
	assert := require.New(t)
	codec := newTestCodec(t)

	sessionID := uuid.Must(uuid.NewV7())

	got, err := codec.Decode(codec.Encode(sessionID))
	assert.NoError(err)
	assert.Equal(sessionID, got)
}

func TestCookieCodecRejectsTampering(t *testing.T) {
	assert := require.New(t)
	codec := newTestCodec(t)

	value := codec.Encode(uuid.Must(uuid.NewV7()))

	// swap the session ID, keep the signature
	forged := uuid.Must(uuid.NewV7()).String() + value[36:]
	_, err := codec.Decode(forged)
	assert.ErrorIs(err, ErrInvalidSession)

	_, err = codec.Decode("no-signature-here")
	assert.ErrorIs(err, ErrInvalidSession)

	_, err = codec.Decode("")
	assert.ErrorIs(err, ErrInvalidSession)

	// a codec with a different secret must reject the value
	other, err := NewCookieCodec([]byte("ffffffffffffffffffffffffffffffff"), true, time.Hour)
	assert.NoError(err)
	_, err = other.Decode(value)
	assert.ErrorIs(err, ErrInvalidSession)
}

func TestCookieCodecRejectsShortSecret(t *testing.T) {
	_, err := NewCookieCodec([]byte("short"), true, time.Hour)
	require.Error(t, err)
}

func TestSessionIDFromRequest(t *testing.T) {
	assert := require.New(t)
	codec := newTestCodec(t)

	sessionID := uuid.Must(uuid.NewV7())

	rec := httptest.NewRecorder()
	codec.SetCookie(rec, sessionID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}

	got, err := codec.SessionIDFromRequest(req)
	assert.NoError(err)
	assert.Equal(sessionID, got)

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = codec.SessionIDFromRequest(bare)
	assert.ErrorIs(err, ErrInvalidSession)
}
