package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Walcord/internal/model"
	"Walcord/internal/pkg"
	"Walcord/internal/repository/redis"
)

type memUsers struct {
	byID map[uint64]*model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	for _, x := range m.byID {
		if x.Username == u.Username || x.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	u.ID = uint64(len(m.byID) + 1)
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) FindByUsername(_ context.Context, name string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == name })
}

func (m *memUsers) FindByID(_ context.Context, id uint64) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *memUsers) UpdatePassword(_ context.Context, u *model.User, hashed string) error {
	m.byID[u.ID].Password = hashed
	return nil
}

type captureMailer struct {
	sent []string
	fail bool
}

func (c *captureMailer) Send(to, _, _ string) error {
	if c.fail {
		return errors.New("smtp down")
	}
	c.sent = append(c.sent, to)
	return nil
}

type userFixture struct {
	svc    *UserService
	mailer *captureMailer
	mr     *miniredis.Miniredis
}

func newUserFixture(t *testing.T) *userFixture {
	mr, rdb := newRedis(t)
	mailer := &captureMailer{}
	email := NewEmailService(mailer, redis.NewEmailRepository(rdb))
	j := pkg.NewJWT(pkg.JWTConfig{AccessSecret: "a-secret", RefreshSecret: "r-secret"})
	svc := NewUserService(&memUsers{byID: map[uint64]*model.User{}}, redis.NewTokenRepository(rdb, time.Hour), j, email)
	return &userFixture{svc: svc, mailer: mailer, mr: mr}
}

// code 取出已发送的验证码
func (f *userFixture) code(t *testing.T, scope, email string) string {
	t.Helper()
	require.NoError(t, f.svc.email.SendCode(context.Background(), scope, email))
	v, err := f.mr.Get("email:code:" + scope + ":confirmed:" + email)
	require.NoError(t, err)
	return v
}

func TestEmailCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("failed mail leaves no usable code", func(t *testing.T) {
		f := newUserFixture(t)
		f.mailer.fail = true
		assert.Error(t, f.svc.email.SendCode(ctx, redis.ScopeRegister, "a@x.com"))
		assert.False(t, f.mr.Exists("email:code:register:pending:a@x.com"))
		assert.False(t, f.mr.Exists("email:code:register:confirmed:a@x.com"))
	})

	t.Run("unknown scope", func(t *testing.T) {
		f := newUserFixture(t)
		assert.ErrorIs(t, f.svc.email.SendCode(ctx, "promo", "a@x.com"), ErrUnknownCodeScope)
	})

	t.Run("codes are single use and scoped", func(t *testing.T) {
		f := newUserFixture(t)
		code := f.code(t, redis.ScopeRegister, "a@x.com")
		assert.Len(t, code, 6)
		assert.Equal(t, []string{"a@x.com"}, f.mailer.sent)

		ok, err := f.svc.email.VerifyCode(ctx, redis.ScopeReset, "a@x.com", code)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.svc.email.VerifyCode(ctx, redis.ScopeRegister, "a@x.com", code)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = f.svc.email.VerifyCode(ctx, redis.ScopeRegister, "a@x.com", code)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture(t)

	_, err := f.svc.Register(ctx, "mina", "password1", "mina@x.com", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	code := f.code(t, redis.ScopeRegister, "mina@x.com")
	_, err = f.svc.Register(ctx, "mina", "short", "mina@x.com", code)
	assert.ErrorIs(t, err, ErrWeakPassword)

	code = f.code(t, redis.ScopeRegister, "mina@x.com")
	user, err := f.svc.Register(ctx, "mina", "password1", "mina@x.com", code)
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	_, err = f.svc.Login(ctx, "mina", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	first, err := f.svc.Login(ctx, "mina", "password1")
	require.NoError(t, err)
	id, err := f.svc.Authenticate(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	t.Run("a second login replaces the first session", func(t *testing.T) {
		second, err := f.svc.Login(ctx, "mina", "password1")
		require.NoError(t, err)
		_, err = f.svc.Authenticate(ctx, first.AccessToken)
		assert.ErrorIs(t, err, ErrSessionReplaced)

		refreshed, err := f.svc.Refresh(ctx, second.RefreshToken)
		require.NoError(t, err)
		_, err = f.svc.Authenticate(ctx, second.AccessToken)
		assert.ErrorIs(t, err, ErrSessionReplaced)
		id, err := f.svc.Authenticate(ctx, refreshed.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
	})

	t.Run("garbage tokens are rejected", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "not-a-token")
		assert.ErrorIs(t, err, pkg.ErrTokenInvalid)
		_, err = f.svc.Refresh(ctx, first.AccessToken)
		assert.ErrorIs(t, err, pkg.ErrRefreshInvalid)
	})

	t.Run("change password logs out", func(t *testing.T) {
		pair, err := f.svc.Login(ctx, "mina", "password1")
		require.NoError(t, err)
		assert.ErrorIs(t, f.svc.ChangePassword(ctx, user.ID, "nope-nope", "password2"), ErrWrongPassword)
		require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "password1", "password2"))

		_, err = f.svc.Authenticate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrSessionReplaced)
		_, err = f.svc.Login(ctx, "mina", "password2")
		assert.NoError(t, err)
	})

	t.Run("reset password with an emailed code", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.ResetPassword(ctx, "mina@x.com", "123", "password3"), ErrInvalidCode)

		code := f.code(t, redis.ScopeReset, "mina@x.com")
		require.NoError(t, f.svc.ResetPassword(ctx, "mina@x.com", code, "password3"))
		_, err := f.svc.Login(ctx, "mina", "password2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.svc.Login(ctx, "mina", "password3")
		assert.NoError(t, err)
	})
}
