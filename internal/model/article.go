package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
	ArticleArchived  ArticleStatus = "archived"
)

func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleDraft, ArticlePublished, ArticleArchived:
		return true
	}
	return false
}

// swagger:model ArticleCategory
type ArticleCategory struct {
	BaseModel
	Name        string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Slug        string `gorm:"size:120;not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
}

func (ArticleCategory) TableName() string {
	return "article_categories"
}

// Article content is stored as sanitized HTML.
// swagger:model Article
type Article struct {
	BaseModel
	Title         string                      `gorm:"size:255;not null;uniqueIndex" json:"title"`
	Slug          string                      `gorm:"size:280;not null;uniqueIndex" json:"slug"`
	Content       string                      `gorm:"type:text" json:"content"`
	Excerpt       string                      `gorm:"type:text" json:"excerpt"`
	CategoryID    uint                        `gorm:"index;not null" json:"categoryId"`
	Category      *ArticleCategory            `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Tags          datatypes.JSONSlice[string] `json:"tags"`
	FeaturedImage string                      `gorm:"size:500" json:"featuredImage"`
	Status        ArticleStatus               `gorm:"size:20;default:'draft';index" json:"status"`
	ViewCount     int64                       `gorm:"default:0" json:"viewCount"`
	PublishedAt   *time.Time                  `json:"publishedAt"`
	AuthorID      string                      `gorm:"size:36" json:"authorId"`
}

func (Article) TableName() string {
	return "articles"
}

// NormalizeTags trims, lower-cases and de-duplicates tags while keeping their order.
func NormalizeTags(tags []string) datatypes.JSONSlice[string] {
	seen := make(map[string]bool, len(tags))
	out := datatypes.JSONSlice[string]{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
