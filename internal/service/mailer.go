package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mail 一封待发送的邮件
type Mail struct {
	To      string
	Subject string
	Link    string
}

// Mailer 发送带操作链接的邮件。邮件投递由外部实现。
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// LogMailer 只把邮件写进日志，适合本地开发
type LogMailer struct{}

// Send 记录邮件
func (LogMailer) Send(_ context.Context, mail Mail) error {
	logrus.WithFields(logrus.Fields{
		"to":      mail.To,
		"subject": mail.Subject,
		"link":    mail.Link,
	}).Info("mail queued")
	return nil
}

// MemoryMailer 保存发出的邮件，供测试检查
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Mail
}

// Send 记录邮件
func (m *MemoryMailer) Send(_ context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

// Sent 返回已发送邮件的副本
func (m *MemoryMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mail, len(m.sent))
	copy(out, m.sent)
	return out
}
