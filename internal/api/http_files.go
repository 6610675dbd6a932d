package api

import (
	"snapgraph/internal/storage"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h *HTTPHandler) publicURL(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return storage.PublicURL(h.storagePublicBase, trimmed)
}

// mountFiles 本地存储时直接提供上传的文件；公开地址为外部 URL 时由 CDN 提供
func (h *HTTPHandler) mountFiles(r *gin.Engine) {
	localProvider, ok := h.storage.(storage.LocalBaseDirProvider)
	if !ok {
		return
	}
	prefix := h.storagePublicBase
	if strings.HasPrefix(prefix, "http://") || strings.HasPrefix(prefix, "https://") {
		return
	}
	r.Static(prefix, localProvider.LocalBaseDir())
}
