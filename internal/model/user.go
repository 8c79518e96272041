package model

import "time"

// User 表示系统用户。
type User struct {
	ID           uint      `gorm:"primaryKey"`                             // 用户 ID
	Email        string    `gorm:"type:varchar(191);uniqueIndex;not null"` // 邮箱（唯一，小写）
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"` // bcrypt 哈希
	CreatedAt    time.Time // 创建时间
	UpdatedAt    time.Time // 更新时间

	Tasks []Task `gorm:"foreignKey:UserID"`
}

// Profile 是可以对外暴露的用户信息，不包含密码哈希。
type Profile struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile 返回用户的公开资料。
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
