package service

import (
	"context"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	require.NoError(t, env.graph.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, env.graph.Follow(ctx, alice.ID, bob.ID))

	assert.Equal(t, int64(1), env.followEdgeCount(t, alice.ID, bob.ID))
	assert.Equal(t, int64(1), env.notificationCount(t, bob.ID), "second follow must not notify")

	following, err := env.graph.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
	following, err = env.graph.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, following)

	count, err := env.graph.FollowerCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFollowUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	err := env.graph.Follow(context.Background(), alice.ID, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnfollow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	require.NoError(t, env.graph.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, env.graph.Unfollow(ctx, alice.ID, bob.ID))
	require.NoError(t, env.graph.Unfollow(ctx, alice.ID, bob.ID))
	assert.Equal(t, int64(0), env.followEdgeCount(t, alice.ID, bob.ID))
}

func TestSelfFollowSurvivesUnfollow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	require.NoError(t, env.graph.Unfollow(ctx, alice.ID, alice.ID))
	assert.Equal(t, int64(1), env.followEdgeCount(t, alice.ID, alice.ID))

	require.NoError(t, env.graph.Follow(ctx, alice.ID, alice.ID))
	assert.Equal(t, int64(1), env.followEdgeCount(t, alice.ID, alice.ID))
	assert.Equal(t, int64(0), env.notificationCount(t, alice.ID))
}

func TestIsFollowingUnsavedUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	following, err := env.graph.IsFollowing(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestFollowedFeedIncludesOwnPhotosNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	own := env.photo(t, alice, base)
	bobs := env.photo(t, bob, base.Add(time.Hour))
	env.photo(t, carol, base.Add(2*time.Hour))

	require.NoError(t, env.graph.Follow(ctx, alice.ID, bob.ID))

	photos, meta, err := env.graph.FollowedFeed(ctx, alice.ID, common.BaseParams{})
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, int64(2), meta.Total)
	assert.Equal(t, int64(12), meta.PageSize)
	assert.Equal(t, bobs.ID, photos[0].ID)
	assert.Equal(t, own.ID, photos[1].ID)
	require.NotNil(t, photos[0].Author)
	assert.Equal(t, "bob", photos[0].Author.Username)
}

func TestFollowersAndFollowingIncludeSelfEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	require.NoError(t, env.graph.Follow(ctx, alice.ID, bob.ID))

	followers, meta, err := env.graph.Followers(ctx, bob.ID, common.BaseParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Total)
	ids := []uint{followers[0].FollowerID, followers[1].FollowerID}
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, ids)

	following, _, err := env.graph.Following(ctx, alice.ID, common.BaseParams{})
	require.NoError(t, err)
	require.Len(t, following, 2)
	for _, f := range following {
		require.NotNil(t, f.Followed)
	}

	_, _, err = env.graph.Followers(ctx, 999, common.BaseParams{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollectUncollect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	photo := env.photo(t, bob, time.Now())

	require.NoError(t, env.graph.Collect(ctx, alice.ID, photo.ID))
	require.NoError(t, env.graph.Collect(ctx, alice.ID, photo.ID))

	count, err := env.graph.CollectorCount(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), env.notificationCount(t, bob.ID))

	collecting, err := env.graph.IsCollecting(ctx, alice.ID, photo.ID)
	require.NoError(t, err)
	assert.True(t, collecting)

	require.NoError(t, env.graph.Uncollect(ctx, alice.ID, photo.ID))
	require.NoError(t, env.graph.Uncollect(ctx, alice.ID, photo.ID))

	collecting, err = env.graph.IsCollecting(ctx, alice.ID, photo.ID)
	require.NoError(t, err)
	assert.False(t, collecting)

	err = env.graph.Collect(ctx, alice.ID, 31337)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollectOwnPhotoDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	photo := env.photo(t, alice, time.Now())

	require.NoError(t, env.graph.Collect(ctx, alice.ID, photo.ID))
	assert.Equal(t, int64(0), env.notificationCount(t, alice.ID))
}

func TestCollectionsVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	photo := env.photo(t, bob, time.Now())
	require.NoError(t, env.graph.Collect(ctx, alice.ID, photo.ID))

	collects, _, err := env.graph.Collections(ctx, bob.ID, alice.ID, common.BaseParams{})
	require.NoError(t, err)
	require.Len(t, collects, 1)
	require.NotNil(t, collects[0].Photo)
	assert.Equal(t, photo.ID, collects[0].Photo.ID)

	private := false
	require.NoError(t, env.repo.UpdateUser(ctx, alice.ID, db.UserUpdates{PublicCollections: &private}))

	_, _, err = env.graph.Collections(ctx, bob.ID, alice.ID, common.BaseParams{})
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	collects, _, err = env.graph.Collections(ctx, alice.ID, alice.ID, common.BaseParams{})
	require.NoError(t, err)
	assert.Len(t, collects, 1)

	collectors, _, err := env.graph.Collectors(ctx, photo.ID, common.BaseParams{})
	require.NoError(t, err)
	require.Len(t, collectors, 1)
	assert.Equal(t, alice.ID, collectors[0].CollectorID)
}

func TestFollowRespectsOptOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	_, err := env.identity.UpdateNotificationSettings(ctx, bob.ID, dto.NotificationSettingsRequest{
		ReceiveFollowNotification: boolPtr(false),
	})
	require.NoError(t, err)

	require.NoError(t, env.graph.Follow(ctx, alice.ID, bob.ID))
	assert.Equal(t, int64(1), env.followEdgeCount(t, alice.ID, bob.ID))
	assert.Equal(t, int64(0), env.notificationCount(t, bob.ID))
}

// runConcurrently 并发执行 fn n 次，返回每次调用的错误
func runConcurrently(n int, fn func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestConcurrentFollowCreatesSingleEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	errs := runConcurrently(20, func() error {
		return env.graph.Follow(ctx, alice.ID, bob.ID)
	})
	for _, err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, int64(1), env.followEdgeCount(t, alice.ID, bob.ID))
	assert.Equal(t, int64(1), env.notificationCount(t, bob.ID), "only the inserting call notifies")
	count, err := env.graph.FollowerCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentCollectCreatesSingleEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	photo := env.photo(t, bob, time.Now())

	errs := runConcurrently(20, func() error {
		return env.graph.Collect(ctx, alice.ID, photo.ID)
	})
	for _, err := range errs {
		assert.NoError(t, err)
	}

	var edges int64
	require.NoError(t, env.repo.DB().Model(&db.Collect{}).
		Where("collector_id = ? AND photo_id = ?", alice.ID, photo.ID).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)
	assert.Equal(t, int64(1), env.notificationCount(t, bob.ID))
	count, err := env.graph.CollectorCount(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentFollowAndUnfollowNeverErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	var mu sync.Mutex
	calls := 0
	errs := runConcurrently(20, func() error {
		mu.Lock()
		calls++
		follow := calls%2 == 0
		mu.Unlock()
		if follow {
			return env.graph.Follow(ctx, alice.ID, bob.ID)
		}
		return env.graph.Unfollow(ctx, alice.ID, bob.ID)
	})
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, env.followEdgeCount(t, alice.ID, bob.ID), int64(1))
}
