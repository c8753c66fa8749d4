package models

// SnippetModel is snippet metadata. The snippet body itself lives in the
// object store under the row ID. The table is shared with the ingestion
// service, which owns chapter_index and source_url.
type SnippetModel struct {
	Base
	Title        string `json:"title"        gorm:"size:255;not null;index"`
	Author       string `json:"author"       gorm:"size:255"`
	ChapterIndex int    `json:"chapterIndex" gorm:"default:0"`
	SourceURL    string `json:"sourceUrl"    gorm:"size:512"`

	Tags []TagModel `json:"tags" gorm:"many2many:snippet_tags;joinForeignKey:SnippetID;joinReferences:TagID"`
}

func (SnippetModel) TableName() string { return "snippets" }

// TagModel is a normalized Chinese tag attached to snippets.
type TagModel struct {
	Base
	Name       string `json:"name"        gorm:"size:16;uniqueIndex;not null"`
	UsageCount int    `json:"usage_count" gorm:"default:0"`
}

func (TagModel) TableName() string { return "tags" }
