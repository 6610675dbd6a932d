package db

import "time"

// Photo 用户上传的图片。文件本身由存储后端保存，这里只记录对象键。
type Photo struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Description string    `gorm:"column:description;type:varchar(500)" json:"description"`
	ObjectKey   string    `gorm:"column:object_key;type:varchar(255)" json:"object_key"`
	CanComment  bool      `gorm:"column:can_comment;not null" json:"can_comment"`
	Flag        int       `gorm:"column:flag;not null;default:0" json:"flag"`

	AuthorID uint  `gorm:"column:author_id;index;not null" json:"author_id"`
	Author   *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 指定表名
func (Photo) TableName() string {
	return "photos"
}

// Comment 图片评论，RepliedID 指向被回复的评论。
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Body      string    `gorm:"column:body;type:text" json:"body"`
	Flag      int       `gorm:"column:flag;not null;default:0" json:"flag"`

	AuthorID  uint  `gorm:"column:author_id;index;not null" json:"author_id"`
	PhotoID   uint  `gorm:"column:photo_id;index;not null" json:"photo_id"`
	RepliedID *uint `gorm:"column:replied_id;index" json:"replied_id,omitempty"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 指定表名
func (Comment) TableName() string {
	return "comments"
}

// Notification 消息提醒。Message 是派发时渲染的快照，之后只会修改 IsRead。
type Notification struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	ReceiverID uint      `gorm:"column:receiver_id;index;not null" json:"receiver_id"`
	Message    string    `gorm:"column:message;type:text;not null" json:"message"`
	IsRead     bool      `gorm:"column:is_read;not null;default:false;index" json:"is_read"`
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}
