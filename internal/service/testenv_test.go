package service

import (
	"context"
	"os"
	"path/filepath"
	"snapgraph/internal/auth"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/model"
	"snapgraph/internal/model/sql"
	"snapgraph/internal/storage"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	repo     *sql.GormRepository
	store    *storage.LocalStorage
	clock    *testClock
	mailer   *MemoryMailer
	codec    *auth.ActionTokenCodec
	notifier *NotificationService
	identity *IdentityService
	graph    *GraphService
	accounts *AccountService
	content  *ContentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, false)
}

// newTestEnvWithDenylist 使用与令牌同一时钟的内存黑名单
func newTestEnvWithDenylist(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, true)
}

func buildTestEnv(t *testing.T, withDenylist bool) *testEnv {
	t.Helper()
	repo, err := sql.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := repo.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, model.InitRoles(context.Background(), repo))

	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	clock := &testClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	codec, err := auth.NewActionTokenCodec([]byte("test-secret"), "test", auth.ActionTokenTTL{
		Confirm:       time.Hour,
		ResetPassword: time.Hour,
		ChangeEmail:   time.Hour,
	}, clock.Now)
	require.NoError(t, err)

	var denylist auth.Denylist
	if withDenylist {
		denylist = auth.NewMemoryDenylist(clock.Now)
	}

	mailer := &MemoryMailer{}
	notifier := NewNotificationService(repo, nil, "")
	env := &testEnv{
		repo:     repo,
		store:    store,
		clock:    clock,
		mailer:   mailer,
		codec:    codec,
		notifier: notifier,
		identity: NewIdentityService(repo, store, IdentityOptions{
			AdminEmail:                        "admin@example.com",
			DefaultReceiveFollowNotification:  true,
			DefaultReceiveCommentNotification: true,
			DefaultReceiveCollectNotification: true,
		}),
		graph:    NewGraphService(repo, notifier, nil, 12),
		accounts: NewAccountService(repo, codec, denylist, mailer, nil, "http://localhost"),
		content:  NewContentService(repo, store, notifier),
	}
	return env
}

func (e *testEnv) register(t *testing.T, username string) *db.User {
	t.Helper()
	user, err := e.identity.Register(context.Background(), dto.AuthRegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) photo(t *testing.T, author *db.User, createdAt time.Time) *db.Photo {
	t.Helper()
	p := &db.Photo{
		CreatedAt:  createdAt,
		ObjectKey:  "",
		CanComment: true,
		AuthorID:   author.ID,
	}
	require.NoError(t, e.repo.CreatePhoto(context.Background(), p))
	return p
}

func (e *testEnv) notificationCount(t *testing.T, receiverID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.repo.DB().Model(&db.Notification{}).Where("receiver_id = ?", receiverID).Count(&count).Error)
	return count
}

func (e *testEnv) followEdgeCount(t *testing.T, followerID, followedID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.repo.DB().Model(&db.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).Count(&count).Error)
	return count
}

func (e *testEnv) reload(t *testing.T, id uint) *db.User {
	t.Helper()
	user, err := e.repo.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// stored 报告对象键对应的文件是否仍在本地存储中
func (e *testEnv) stored(t *testing.T, key string) bool {
	t.Helper()
	require.NotEmpty(t, key)
	_, err := os.Stat(filepath.Join(e.store.LocalBaseDir(), filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func boolPtr(v bool) *bool { return &v }
