package db

import "time"

// Follow 关注关系，(follower_id, followed_id) 为联合主键。
type Follow struct {
	FollowerID uint      `gorm:"column:follower_id;primaryKey;autoIncrement:false" json:"follower_id"`
	FollowedID uint      `gorm:"column:followed_id;primaryKey;autoIncrement:false;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower *User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Followed *User `gorm:"foreignKey:FollowedID" json:"followed,omitempty"`
}

// TableName 指定表名
func (Follow) TableName() string {
	return "follows"
}

// Collect 收藏关系，(collector_id, photo_id) 为联合主键。
type Collect struct {
	CollectorID uint      `gorm:"column:collector_id;primaryKey;autoIncrement:false" json:"collector_id"`
	PhotoID     uint      `gorm:"column:photo_id;primaryKey;autoIncrement:false;index" json:"photo_id"`
	CreatedAt   time.Time `json:"created_at"`

	Collector *User  `gorm:"foreignKey:CollectorID" json:"collector,omitempty"`
	Photo     *Photo `gorm:"foreignKey:PhotoID" json:"photo,omitempty"`
}

// TableName 指定表名
func (Collect) TableName() string {
	return "collects"
}
