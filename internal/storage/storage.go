package storage

import (
	"context"
	"fmt"
	"snapgraph/internal/config"
	"strings"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
)

// SaveOptions 控制对象键的生成。
//
// Category 是键的第一级目录（CategoryPhoto、CategoryAvatar），Extension 不含前导点，
// 为空时保存为 .bin。BaseName 为空时使用时间戳。
type SaveOptions struct {
	Category  string
	Extension string
	BaseName  string
}

// Storage 是持久化二进制数据并返回存储特定标识符的抽象（例如本地存储的相对路径）。
//
// Delete 删除 Save 返回的对象键；对象不存在时返回 nil。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	Delete(ctx context.Context, key string) error
}

const (
	// CategoryPhoto 用户上传的图片
	CategoryPhoto = "photos"
	// CategoryAvatar 用户头像
	CategoryAvatar = "avatars"
)

// LocalBaseDirProvider 由暴露可通过 HTTP 直接提供服务的本地目录的存储驱动实现。
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// PublicURL 把对象键拼接到公开访问前缀上
func PublicURL(baseURL, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return ""
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "/" + key
	}
	return base + "/" + key
}

// DeleteAll 尽力删除一组对象，返回遇到的第一个错误
func DeleteAll(ctx context.Context, s Storage, keys []string) error {
	if s == nil {
		return nil
	}
	var first error
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := s.Delete(ctx, key); err != nil && first == nil {
			first = fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return first
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
