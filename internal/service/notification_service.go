package service

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/metrics"
	"snapgraph/internal/model"
	"strings"

	"github.com/sirupsen/logrus"
)

// 提醒类别，对应用户的三个订阅开关
const (
	CategoryFollow  = "follow"
	CategoryCollect = "collect"
	CategoryComment = "comment"
	CategoryReply   = "reply"
)

// NotificationService 负责派发提醒消息以及收件箱读写。
//
// Notify* 方法接收调用方事务绑定的 Repository，提醒与触发它的写操作一起提交或回滚。
type NotificationService struct {
	repo    model.Repository
	metrics *metrics.Metrics
	baseURL string
}

// NewNotificationService 创建提醒服务。baseURL 用于渲染消息里的链接，可为空。
func NewNotificationService(repo model.Repository, m *metrics.Metrics, baseURL string) *NotificationService {
	return &NotificationService{
		repo:    repo,
		metrics: m,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// NotifyFollow 有新用户关注 receiver
func (s *NotificationService) NotifyFollow(ctx context.Context, tx model.Repository, actor, receiver *db.User) (bool, error) {
	if actor == nil || receiver == nil {
		return false, nil
	}
	message := fmt.Sprintf("用户 %s 关注了你。", s.userLink(actor))
	return s.dispatch(ctx, tx, CategoryFollow, actor.ID, receiver, receiver.ReceiveFollowNotification, message)
}

// NotifyCollect 图片被收藏，提醒图片作者。photo.Author 必须已加载。
func (s *NotificationService) NotifyCollect(ctx context.Context, tx model.Repository, actor *db.User, photo *db.Photo) (bool, error) {
	if actor == nil || photo == nil || photo.Author == nil {
		return false, nil
	}
	message := fmt.Sprintf("用户 %s 收藏了你的 <a href=\"%s\">图片</a>", s.userLink(actor), s.photoURL(photo.ID, ""))
	return s.dispatch(ctx, tx, CategoryCollect, actor.ID, photo.Author, photo.Author.ReceiveCollectNotification, message)
}

// NotifyComment 图片有新评论，提醒图片作者。photo.Author 必须已加载。
func (s *NotificationService) NotifyComment(ctx context.Context, tx model.Repository, actor *db.User, photo *db.Photo) (bool, error) {
	if actor == nil || photo == nil || photo.Author == nil {
		return false, nil
	}
	message := fmt.Sprintf("用户 %s 评论了你的 <a href=\"%s\">图片</a>", s.userLink(actor), s.photoURL(photo.ID, "comments"))
	return s.dispatch(ctx, tx, CategoryComment, actor.ID, photo.Author, photo.Author.ReceiveCommentNotification, message)
}

// NotifyReply 评论被回复，提醒被回复评论的作者
func (s *NotificationService) NotifyReply(ctx context.Context, tx model.Repository, actor *db.User, photo *db.Photo, receiver *db.User) (bool, error) {
	if actor == nil || photo == nil || receiver == nil {
		return false, nil
	}
	message := fmt.Sprintf("用户 %s 回复了你在 <a href=\"%s\">图片</a> 下的评论", s.userLink(actor), s.photoURL(photo.ID, "comments"))
	return s.dispatch(ctx, tx, CategoryReply, actor.ID, receiver, receiver.ReceiveCommentNotification, message)
}

// dispatch 仅当 actor 不是 receiver 且 receiver 开启了对应订阅时写入一条提醒，不做去重
func (s *NotificationService) dispatch(ctx context.Context, tx model.Repository, category string, actorID uint, receiver *db.User, optedIn bool, message string) (bool, error) {
	if actorID == receiver.ID || !optedIn {
		s.metrics.ObserveNotification(category, "skipped")
		return false, nil
	}
	if tx == nil {
		tx = s.repo
	}
	notification := &db.Notification{ReceiverID: receiver.ID, Message: message}
	if err := tx.CreateNotification(ctx, notification); err != nil {
		return false, fmt.Errorf("create %s notification: %w", category, err)
	}
	s.metrics.ObserveNotification(category, "sent")
	logrus.WithFields(logrus.Fields{
		"category":    category,
		"actor_id":    actorID,
		"receiver_id": receiver.ID,
	}).Debug("notification dispatched")
	return true, nil
}

func (s *NotificationService) userLink(u *db.User) string {
	href := s.baseURL + "/users/" + url.PathEscape(u.Username)
	return fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(href), html.EscapeString(u.Username))
}

func (s *NotificationService) photoURL(photoID uint, fragment string) string {
	href := fmt.Sprintf("%s/photos/%d", s.baseURL, photoID)
	if fragment != "" {
		href += "#" + fragment
	}
	return html.EscapeString(href)
}

// List 返回收件箱，按时间倒序
func (s *NotificationService) List(ctx context.Context, receiverID uint, unreadOnly bool, params common.BaseParams) ([]db.Notification, *common.Meta, error) {
	return s.repo.ListNotifications(ctx, receiverID, unreadOnly, params)
}

// UnreadCount 未读消息数
func (s *NotificationService) UnreadCount(ctx context.Context, receiverID uint) (int64, error) {
	return s.repo.CountUnreadNotifications(ctx, receiverID)
}

// MarkRead 标记单条消息已读。别人的消息视为不存在。
func (s *NotificationService) MarkRead(ctx context.Context, id, receiverID uint) error {
	return notFound(s.repo.MarkNotificationRead(ctx, id, receiverID))
}

// MarkAllRead 一键已读
func (s *NotificationService) MarkAllRead(ctx context.Context, receiverID uint) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, receiverID)
}
