package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxImageBytes 单张上传图片的大小上限
const MaxImageBytes = 8 << 20

// ErrUnsupportedImage 负载不是支持的图片格式
var ErrUnsupportedImage = errors.New("unsupported image payload")

// DecodeImagePayload decodes an inline base64 or data URL payload and returns
// the raw bytes together with the file extension derived from the sniffed content type.
func DecodeImagePayload(payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", fmt.Errorf("empty image payload")
	}

	_, base64Payload := SplitDataURL(trimmed)
	base64Payload = strings.TrimSpace(base64Payload)
	if base64Payload == "" {
		return nil, "", fmt.Errorf("empty base64 payload")
	}
	if base64.StdEncoding.DecodedLen(len(base64Payload)) > MaxImageBytes+2 {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	data, err := base64.StdEncoding.DecodeString(base64Payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	// 以实际内容为准，不信任 data URL 里声明的类型
	ext := ExtensionFromMime(http.DetectContentType(data))
	if ext == "" {
		return nil, "", ErrUnsupportedImage
	}
	return data, ext, nil
}

// ExtensionFromMime maps the image content types we accept to a file extension.
func ExtensionFromMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return ""
	}
}
