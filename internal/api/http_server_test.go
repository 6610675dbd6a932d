package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"snapgraph/internal/auth"
	"snapgraph/internal/config"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/metrics"
	"snapgraph/internal/model"
	"snapgraph/internal/model/sql"
	"snapgraph/internal/service"
	"snapgraph/internal/storage"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *gin.Engine
	identity *service.IdentityService
	mailer   *service.MemoryMailer
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := sql.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := repo.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, model.InitRoles(context.Background(), repo))

	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	codec, err := auth.NewActionTokenCodec([]byte("action-secret"), "test-actions", auth.ActionTokenTTL{}, time.Now)
	require.NoError(t, err)

	m := metrics.NewMetrics("snapgraph", nil)
	mailer := &service.MemoryMailer{}
	notifier := service.NewNotificationService(repo, m, "")
	identity := service.NewIdentityService(repo, store, service.IdentityOptions{
		AdminEmail:                        "admin@example.com",
		DefaultReceiveFollowNotification:  true,
		DefaultReceiveCommentNotification: true,
		DefaultReceiveCollectNotification: true,
	})
	svc := Services{
		Identity:      identity,
		Accounts:      service.NewAccountService(repo, codec, nil, mailer, m, "http://localhost"),
		Graph:         service.NewGraphService(repo, notifier, m, 12),
		Content:       service.NewContentService(repo, store, notifier),
		Notifications: notifier,
	}
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "test", JWTExpirationMinutes: 60, StoragePublicBaseURL: "/files"}
	handler, err := NewHTTPHandler(cfg, store, svc, m)
	require.NoError(t, err)

	router := gin.New()
	router.Use(m.Middleware())
	handler.RegisterRoutes(router)
	return &testServer{router: router, identity: identity, mailer: mailer, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register 注册并返回会话令牌和用户 ID
func (s *testServer) register(t *testing.T, username string) (string, uint) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", dto.AuthRegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

// confirm 使用最近一封发给 email 的确认邮件
func (s *testServer) confirm(t *testing.T, token, email string) {
	t.Helper()
	var link string
	for _, mail := range s.mailer.Sent() {
		if mail.To == email && strings.Contains(mail.Link, "/auth/confirm/") {
			link = mail.Link
		}
	}
	require.NotEmpty(t, link)
	actionToken := link[strings.LastIndex(link, "/")+1:]
	rec := s.do(t, http.MethodPost, "/api/auth/confirm/"+actionToken, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/notifications", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrCodeSessionExpired, decodeError(t, rec).Code)
}

func TestSocialActionsRequireConfirmation(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.register(t, "alice")
	_, bobID := s.register(t, "bob")

	path := "/api/users/" + itoa(bobID) + "/follow"
	rec := s.do(t, http.MethodPost, path, aliceToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrCodeUnconfirmed, decodeError(t, rec).Code)

	s.confirm(t, aliceToken, "alice@example.com")

	rec = s.do(t, http.MethodPost, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status dto.RelationStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Active)
	assert.Equal(t, int64(1), status.Count)

	rec = s.do(t, http.MethodPost, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(1), status.Count)
}

func TestLockedMemberCannotUpload(t *testing.T) {
	s := newTestServer(t)
	aliceToken, aliceID := s.register(t, "alice")
	s.confirm(t, aliceToken, "alice@example.com")

	_, err := s.identity.Lock(context.Background(), aliceID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/photos", aliceToken, dto.PhotoCreateRequest{Image: "aGVsbG8="})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrCodeForbidden, decodeError(t, rec).Code)

	metricsRec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `snapgraph_authorization_denied_total{permission="UPLOAD"} 1`)
}

func TestAdminTransitions(t *testing.T) {
	s := newTestServer(t)
	adminToken, _ := s.register(t, "admin")
	modToken, modID := s.register(t, "mod")
	_, userID := s.register(t, "carol")

	_, err := s.identity.AssignRole(context.Background(), modID, "Moderator")
	require.NoError(t, err)

	// 版主可以禁用，但不能分配角色
	rec := s.do(t, http.MethodPost, "/api/admin/users/"+itoa(userID)+"/lock", modToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary dto.UserSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Locked)
	assert.Equal(t, "Locked", summary.Role)

	rec = s.do(t, http.MethodPut, "/api/admin/users/"+itoa(userID)+"/role", modToken, dto.RoleAssignRequest{Role: "Moderator"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/users/"+itoa(userID)+"/unlock", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.False(t, summary.Locked)
	assert.Equal(t, "User", summary.Role)

	rec = s.do(t, http.MethodPut, "/api/admin/users/"+itoa(userID)+"/role", adminToken, dto.RoleAssignRequest{Role: "Wizard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/users/"+itoa(userID)+"/block", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", dto.AuthLoginRequest{Login: "carol", Password: "password-carol"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrCodeUserDisabled, decodeError(t, rec).Code)
}

func TestChangeEmailConflictOverHTTP(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.register(t, "alice")
	s.register(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/users/me/email", aliceToken, dto.ChangeEmailRequest{Email: "bob@example.com"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrCodeEmailExists, decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/users/me/email/garbage", aliceToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidToken, decodeError(t, rec).Code)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice")

	known := s.do(t, http.MethodPost, "/api/auth/password/forgot", "", dto.ForgotPasswordRequest{Email: "alice@example.com"})
	unknown := s.do(t, http.MethodPost, "/api/auth/password/forgot", "", dto.ForgotPasswordRequest{Email: "ghost@example.com"})
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestPublicCollectionsVisibleToAnonymous(t *testing.T) {
	s := newTestServer(t)
	_, aliceID := s.register(t, "alice")

	rec := s.do(t, http.MethodGet, "/api/users/"+itoa(aliceID)+"/collections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp dto.PhotoListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Photos)

	rec = s.do(t, http.MethodGet, "/api/users/9999/collections", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t)
	aliceToken, aliceID := s.register(t, "alice")
	payload := dto.AvatarUploadRequest{Image: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="}

	rec := s.do(t, http.MethodPut, "/api/users/me/avatar", aliceToken, payload)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrCodeUnconfirmed, decodeError(t, rec).Code)

	s.confirm(t, aliceToken, "alice@example.com")

	rec = s.do(t, http.MethodPut, "/api/users/me/avatar", aliceToken, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary dto.UserSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, strings.HasPrefix(summary.AvatarURL, "/files/avatars/"), summary.AvatarURL)

	rec = s.do(t, http.MethodGet, "/api/users/"+itoa(aliceID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile dto.UserSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, summary.AvatarURL, profile.AvatarURL)
	assert.Empty(t, profile.Email)

	rec = s.do(t, http.MethodGet, summary.AvatarURL, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/me/avatar", aliceToken, dto.AvatarUploadRequest{Image: "aGVsbG8="})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
