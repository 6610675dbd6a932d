package storage

import (
	"mime"
	"path"
	"strconv"
	"strings"
	"time"
)

// cleanSegment 只保留字母、数字、- 和 _，字母统一小写
func cleanSegment(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, strings.TrimSpace(value))
}

func cleanExtension(ext string) string {
	ext = cleanSegment(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}

func cleanPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// cleanKey 去掉对象键前导的 /，远端存储的键不以 / 开头
func cleanKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

// objectKey 生成 [prefix/]category/yyyy/mm/dd/base.ext。
// BaseName 为空时使用纳秒时间戳，Category 为空时归入 misc。
func objectKey(prefix string, opts SaveOptions, now time.Time) string {
	now = now.UTC()
	category := cleanSegment(opts.Category)
	if category == "" {
		category = "misc"
	}
	base := strings.Trim(cleanSegment(strings.ReplaceAll(strings.TrimSpace(opts.BaseName), " ", "-")), "-_")
	if base == "" {
		base = strconv.FormatInt(now.UnixNano(), 10)
	}

	parts := make([]string, 0, 4)
	if p := cleanPrefix(prefix); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, category, now.Format("2006/01/02"), base+"."+cleanExtension(opts.Extension))
	return path.Join(parts...)
}

func contentTypeFor(ext string) string {
	if typeName := mime.TypeByExtension("." + cleanExtension(ext)); typeName != "" {
		return typeName
	}
	return "application/octet-stream"
}
