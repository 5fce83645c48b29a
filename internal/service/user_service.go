package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Walcord/internal/model"
	"Walcord/internal/pkg"
	"Walcord/internal/repository/redis"
)

var (
	ErrInvalidCode        = errors.New("verification failed")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrSessionReplaced    = errors.New("account has been logged in elsewhere")
)

// UserStore 用户表读写
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, user *model.User, hashed string) error
}

type UserService struct {
	users  UserStore
	tokens *redis.TokenRepository
	jwt    *pkg.JWT
	email  *EmailService
}

func NewUserService(users UserStore, tokens *redis.TokenRepository, jwt *pkg.JWT, email *EmailService) *UserService {
	return &UserService{users: users, tokens: tokens, jwt: jwt, email: email}
}

func hashPassword(pw string) (string, error) {
	if len(pw) < 8 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(hash), err
}

func (s *UserService) Register(ctx context.Context, username, password, email, code string) (*model.User, error) {
	ok, err := s.email.VerifyCode(ctx, redis.ScopeRegister, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{Username: username, Password: hash, Email: email}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 新登录会顶掉旧的 access token
func (s *UserService) Login(ctx context.Context, username, password string) (*pkg.Pair, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID, user.Role)
}

func (s *UserService) issue(ctx context.Context, userID uint64, role int) (*pkg.Pair, error) {
	pair, err := s.jwt.GeneratePair(userID, role)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Set(ctx, userID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.Delete(ctx, userID)
}

// Refresh 换发的 access token 同样写入 redis，成为唯一有效会话
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, pair, err := s.jwt.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Set(ctx, claims.UserID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate 校验 access token 且必须是 redis 中记录的那一个，成功后续期
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (uint64, error) {
	claims, err := s.jwt.ParseAccess(accessToken)
	if err != nil {
		return 0, err
	}
	current, err := s.tokens.Get(ctx, claims.UserID)
	if errors.Is(err, redis.ErrTokenNotFound) {
		return 0, ErrSessionReplaced
	}
	if err != nil {
		return 0, err
	}
	if current != accessToken {
		return 0, ErrSessionReplaced
	}
	_ = s.tokens.Extend(ctx, claims.UserID)
	return claims.UserID, nil
}

func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ok, err := s.email.VerifyCode(ctx, redis.ScopeReset, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user, hash); err != nil {
		return err
	}
	return s.Logout(ctx, user.ID)
}

// ChangePassword 登录态修改密码，成功后需要重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user, hash); err != nil {
		return err
	}
	return s.Logout(ctx, userID)
}
