package model

import "time"

// User owns categories and tasks. It is created on first contact either
// from Telegram or from an authenticated API token.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID *int64    `gorm:"uniqueIndex" json:"telegram_id,omitempty"`
	Username   *string   `gorm:"uniqueIndex;size:150" json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Categories []Category `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tasks      []Task     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
