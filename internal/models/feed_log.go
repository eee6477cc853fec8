package models

import "time"

// DaumFeedLog is one append-only audit row per syndication action.
type DaumFeedLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ArticleID    *int      `gorm:"index" json:"articleId"`
	ContentID    *string   `gorm:"size:191;index" json:"contentId"`
	UUID         *string   `gorm:"column:uuid;size:191;index" json:"uuid"`
	Action       string    `gorm:"size:50;not null;index" json:"action"`
	Status       *string   `gorm:"size:100" json:"status"`
	RequestBody  *string   `gorm:"type:text" json:"requestBody"`
	ResponseBody *string   `gorm:"type:text" json:"responseBody"`
	ErrorMessage *string   `gorm:"type:text" json:"errorMessage"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
