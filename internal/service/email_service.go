package service

import (
	"context"
	"errors"

	"Walcord/internal/logger"
	"Walcord/internal/pkg"
	"Walcord/internal/repository/redis"
)

var ErrUnknownCodeScope = errors.New("unknown code scope")

// Mailer 发送 HTML 邮件
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type EmailService struct {
	mailer Mailer
	codes  *redis.EmailRepository
}

func NewEmailService(mailer Mailer, codes *redis.EmailRepository) *EmailService {
	return &EmailService{mailer: mailer, codes: codes}
}

var codeSubjects = map[string]string{
	redis.ScopeRegister: "sign-up",
	redis.ScopeReset:    "password reset",
}

// SendCode 先写 pending，邮件发出后再转 confirmed，发送失败的验证码不可用
func (s *EmailService) SendCode(ctx context.Context, scope, email string) error {
	subject, ok := codeSubjects[scope]
	if !ok {
		return ErrUnknownCodeScope
	}
	code, err := pkg.RandDigits(6)
	if err != nil {
		return err
	}
	if err = s.codes.SavePending(ctx, scope, email, code); err != nil {
		return err
	}

	html := pkg.EmailCodeHTML(subject, code, s.codes.TTL)
	if err = s.mailer.Send(email, "Your Walcord "+subject+" code", html); err != nil {
		_ = s.codes.DeletePending(ctx, scope, email)
		logger.For(ctx).WithError(err).WithField("scope", scope).Warn("send code mail failed")
		return err
	}

	if err = s.codes.Confirm(ctx, scope, email); err != nil {
		_ = s.codes.DeletePending(ctx, scope, email)
		return err
	}
	return nil
}

// VerifyCode 校验验证码，成功后一次性删除
func (s *EmailService) VerifyCode(ctx context.Context, scope, email, code string) (bool, error) {
	val, err := s.codes.Confirmed(ctx, scope, email)
	if errors.Is(err, redis.ErrEmailCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if val != code {
		return false, nil
	}
	if err = s.codes.DeleteConfirmed(ctx, scope, email); err != nil {
		return false, err
	}
	return true, nil
}
