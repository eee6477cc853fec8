package models

import "time"

// Article statuses as written by the CMS.
const (
	ArticleStatusDraft     = "draft"
	ArticleStatusScheduled = "scheduled"
	ArticleStatusPublish   = "publish"
)

// Article is the CMS record. Only the Daum* columns are written by feedsync;
// the rest belongs to the article CRUD and is read-only here, except for the
// scheduled -> publish transition.
type Article struct {
	ArticleID       int        `gorm:"primaryKey;autoIncrement" json:"articleId"`
	ArticleStatus   string     `gorm:"size:20;default:'draft';index" json:"articleStatus"`
	ArticleTitle    string     `gorm:"size:500" json:"articleTitle"`
	ArticleSubTitle string     `gorm:"size:500" json:"articleSubTitle"`
	ArticleContent  string     `gorm:"type:text" json:"articleContent"`
	ArticleBanner   string     `gorm:"size:1000" json:"articleBanner"`
	PublishedAt     *time.Time `gorm:"index" json:"publishedAt"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	CategoryID *int      `gorm:"index" json:"categoryId"`
	Category   *Category `gorm:"foreignKey:CategoryID;references:CategoryID" json:"category,omitempty"`
	AdminID    *int      `gorm:"index" json:"adminId"`
	Admin      *Admin    `gorm:"foreignKey:AdminID;references:AdminID" json:"admin,omitempty"`

	DaumContentID    *string    `gorm:"size:191;index" json:"daumContentId"`
	DaumUUID         *string    `gorm:"column:daum_uuid;size:191;index" json:"daumUuid"`
	DaumStatus       *string    `gorm:"size:100" json:"daumStatus"`
	DaumLastPushedAt *time.Time `json:"daumLastPushedAt"`
	DaumPreviewPath  *string    `gorm:"size:1000" json:"daumPreviewPath"`
}

type Category struct {
	CategoryID   int    `gorm:"primaryKey;autoIncrement" json:"categoryId"`
	CategoryName string `gorm:"size:100" json:"categoryName"`
}

type Admin struct {
	AdminID int    `gorm:"primaryKey;autoIncrement" json:"adminId"`
	Name    string `gorm:"size:100" json:"name"`
	Rank    string `gorm:"size:50" json:"rank"`
	Email   string `gorm:"size:191" json:"email"`
}
