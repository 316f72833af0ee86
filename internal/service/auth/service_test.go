package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/service"
)

type fakeJWT struct{}

func (fakeJWT) NewToken(login string, _ time.Duration) (string, error) {
	return "token-for-" + login, nil
}

func newAuth(t *testing.T, pass string) *Auth {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, fakeJWT{}, hash, time.Hour)
}

func TestLogin(t *testing.T) {
	a := newAuth(t, "secret")

	testCases := []struct {
		desc    string
		login   string
		pass    string
		wantErr error
	}{
		{desc: "valid credentials", login: models.RootLogin, pass: "secret"},
		{desc: "wrong password", login: models.RootLogin, pass: "nope", wantErr: service.ErrInvalidCredentials},
		{desc: "unknown login", login: "somebody", pass: "secret", wantErr: service.ErrInvalidCredentials},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			token, err := a.Login(context.Background(), tC.login, tC.pass)
			if tC.wantErr != nil {
				assert.ErrorIs(t, err, tC.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "token-for-"+tC.login, token)
		})
	}
}
