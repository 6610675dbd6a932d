package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"snapgraph/internal/auth"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/metrics"
	"snapgraph/internal/model"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApplyExtra 应用令牌时由调用方提供、不放进令牌的数据
type ApplyExtra struct {
	NewPassword string
}

// AccountService 处理邮件链接里的操作令牌：确认账户、重置密码、修改邮箱。
type AccountService struct {
	repo     model.Repository
	codec    *auth.ActionTokenCodec
	denylist auth.Denylist
	mailer   Mailer
	metrics  *metrics.Metrics
	baseURL  string
}

// NewAccountService 创建账户服务。denylist 可以为 nil，此时令牌在过期前可重复使用。
func NewAccountService(repo model.Repository, codec *auth.ActionTokenCodec, denylist auth.Denylist, mailer Mailer, m *metrics.Metrics, baseURL string) *AccountService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AccountService{
		repo:     repo,
		codec:    codec,
		denylist: denylist,
		mailer:   mailer,
		metrics:  m,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// VerifyAndApply 校验令牌并在单个事务中应用对应操作。
//
// 签名错误、过期、操作不符、用户不符都返回 ErrInvalidToken；具体原因只写日志。
// 任何失败分支都不会修改数据。成功后 identity 同步为提交后的状态。
func (s *AccountService) VerifyAndApply(ctx context.Context, token string, identity *db.User, expected auth.Operation, extra ApplyExtra) error {
	log := logrus.WithFields(logrus.Fields{"operation": string(expected)})
	if identity == nil || identity.ID == 0 {
		s.reject(log, expected, "no_identity")
		return ErrInvalidToken
	}
	log = log.WithField("user_id", identity.ID)

	claims, err := s.codec.Decode(token)
	if err != nil {
		s.reject(log.WithError(err), expected, auth.FailureReason(err))
		return ErrInvalidToken
	}
	if claims.Operation != expected || claims.UserID != identity.ID {
		s.reject(log, expected, "mismatch")
		return ErrInvalidToken
	}

	var updates db.UserUpdates
	switch claims.Operation {
	case auth.OperationConfirm:
		confirmed := true
		updates.Confirmed = &confirmed
	case auth.OperationResetPassword:
		if strings.TrimSpace(extra.NewPassword) == "" {
			s.metrics.ObserveActionToken(string(expected), "password_required")
			return ErrPasswordRequired
		}
		hash, err := auth.HashPassword(extra.NewPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		updates.PasswordHash = &hash
	case auth.OperationChangeEmail:
		newEmail := strings.ToLower(strings.TrimSpace(claims.NewEmail))
		if newEmail == "" {
			s.reject(log, expected, "missing_payload")
			return ErrInvalidToken
		}
		updates.Email = &newEmail
	default:
		s.reject(log, expected, "unknown_operation")
		return ErrInvalidToken
	}

	// 提交前先占用令牌；并发应用同一令牌时只有一个能拿到
	sigKey := auth.SignatureKey(token)
	if s.denylist != nil {
		claimed, err := s.denylist.Claim(ctx, sigKey, claims.ExpiresAt.Time)
		if err != nil {
			return fmt.Errorf("claim action token: %w", err)
		}
		if !claimed {
			s.reject(log, expected, "reused")
			return ErrInvalidToken
		}
	}

	err = s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		if updates.Email != nil {
			taken, err := tx.EmailOwnedByOther(ctx, *updates.Email, identity.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrConflictingEmail
			}
		}
		if err := tx.UpdateUser(ctx, identity.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflictingEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		if s.denylist != nil {
			if relErr := s.denylist.Release(ctx, sigKey); relErr != nil {
				log.WithError(relErr).Warn("failed to release action token")
			}
		}
		if errors.Is(err, ErrConflictingEmail) {
			s.metrics.ObserveActionToken(string(expected), "conflicting_email")
			log.Info("change email rejected: address already in use")
		}
		return err
	}

	applyUpdates(identity, updates)
	s.metrics.ObserveActionToken(string(expected), "success")
	log.Info("action token applied")
	return nil
}

func (s *AccountService) reject(log *logrus.Entry, op auth.Operation, reason string) {
	s.metrics.ObserveActionToken(string(op), "invalid")
	log.WithField("reason", reason).Warn("action token rejected")
}

// applyUpdates 把已提交的修改同步到内存中的 identity
func applyUpdates(u *db.User, updates db.UserUpdates) {
	if updates.Confirmed != nil {
		u.Confirmed = *updates.Confirmed
	}
	if updates.PasswordHash != nil {
		u.PasswordHash = *updates.PasswordHash
	}
	if updates.Email != nil {
		u.Email = *updates.Email
	}
}

// IssueConfirmToken 生成确认账户令牌并发送邮件
func (s *AccountService) IssueConfirmToken(ctx context.Context, user *db.User) (string, error) {
	if user == nil {
		return "", ErrNotFound
	}
	token, expiry, err := s.codec.Encode(user.ID, auth.OperationConfirm, auth.ActionPayload{})
	if err != nil {
		return "", err
	}
	return token, s.send(ctx, user.Email, "确认你的账户", "/auth/confirm/"+url.PathEscape(token), expiry)
}

// IssueResetPasswordToken 生成重置密码令牌。邮箱不存在时静默返回，不暴露账户是否存在。
func (s *AccountService) IssueResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("email", email).Info("password reset requested for unknown email")
			return "", nil
		}
		return "", err
	}
	token, expiry, err := s.codec.Encode(user.ID, auth.OperationResetPassword, auth.ActionPayload{})
	if err != nil {
		return "", err
	}
	return token, s.send(ctx, user.Email, "重置密码", "/auth/reset-password/"+url.PathEscape(token), expiry)
}

// IssueChangeEmailToken 生成修改邮箱令牌，邮件发往新地址
func (s *AccountService) IssueChangeEmailToken(ctx context.Context, user *db.User, newEmail string) (string, error) {
	if user == nil {
		return "", ErrNotFound
	}
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return "", ErrInvalidInput
	}
	taken, err := s.repo.EmailOwnedByOther(ctx, newEmail, user.ID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrConflictingEmail
	}
	token, expiry, err := s.codec.Encode(user.ID, auth.OperationChangeEmail, auth.ActionPayload{NewEmail: newEmail})
	if err != nil {
		return "", err
	}
	return token, s.send(ctx, newEmail, "确认新的邮箱地址", "/settings/change-email/"+url.PathEscape(token), expiry)
}

func (s *AccountService) send(ctx context.Context, to, subject, path string, expiry time.Time) error {
	if err := s.mailer.Send(ctx, Mail{To: to, Subject: subject, Link: s.baseURL + path}); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	logrus.WithFields(logrus.Fields{"to": to, "expires_at": expiry}).Debug("action token issued")
	return nil
}
