package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
)

type ItemType string

const (
	ItemMCQ   ItemType = "mcq"
	ItemShort ItemType = "short"
	ItemOther ItemType = "other"
)

const (
	MinMCQOptions = 2
	MaxMCQOptions = 5
)

// AssessmentItem is a question definition. Authored elsewhere; the attempt engine only reads it.
type AssessmentItem struct {
	ID            string                      `json:"id" gorm:"primaryKey;size:64"`
	Type          ItemType                    `json:"type" gorm:"not null;size:16" validate:"required,item_type"`
	Prompt        string                      `json:"prompt" gorm:"type:text"`
	Options       datatypes.JSONSlice[string] `json:"options,omitempty"`
	CorrectIndex  *int                        `json:"correct_index,omitempty"`
	CorrectAnswer *string                     `json:"correct_answer,omitempty" gorm:"type:text"`
	MarkScheme    *string                     `json:"mark_scheme,omitempty" gorm:"type:text"`
	Marks         int                         `json:"marks" gorm:"not null;default:1" validate:"min=1"`
	Explanation   *string                     `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssessmentItem) TableName() string {
	return "assessment_items"
}

// PublicView strips everything a student must not see while attempting.
func (i AssessmentItem) PublicView() AssessmentItem {
	i.CorrectIndex = nil
	i.CorrectAnswer = nil
	i.MarkScheme = nil
	i.Explanation = nil
	return i
}

// PaperItem references an item from a paper, in display order.
type PaperItem struct {
	PaperID string `json:"paper_id" gorm:"primaryKey;size:64"`
	ItemID  string `json:"item_id" gorm:"primaryKey;size:64"`
	Order   int    `json:"order" gorm:"column:position;not null"`
	Marks   *int   `json:"marks,omitempty"` // overrides AssessmentItem.Marks when set
}

func (PaperItem) TableName() string {
	return "assessment_paper_items"
}

// EffectiveMarks resolves the per-paper override against the item default.
func (pi PaperItem) EffectiveMarks(item *AssessmentItem) int {
	if pi.Marks != nil && *pi.Marks > 0 {
		return *pi.Marks
	}
	if item != nil && item.Marks > 0 {
		return item.Marks
	}
	return 1
}

type AssessmentPaper struct {
	ID              string `json:"id" gorm:"primaryKey;size:64"`
	Title           string `json:"title" gorm:"not null;size:200"`
	Subject         string `json:"subject" gorm:"size:100;index"`
	Board           string `json:"board" gorm:"size:100"`
	Level           string `json:"level" gorm:"size:50"`
	DurationSeconds int    `json:"duration_seconds" gorm:"not null;default:0"` // 0 = untimed

	Items []PaperItem `json:"items" gorm:"foreignKey:PaperID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssessmentPaper) TableName() string {
	return "assessment_papers"
}

func (p *AssessmentPaper) IsTimed() bool {
	return p.DurationSeconds > 0
}

// OrderedItems returns the item references sorted by Order without mutating the paper.
func (p *AssessmentPaper) OrderedItems() []PaperItem {
	items := make([]PaperItem, len(p.Items))
	copy(items, p.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	return items
}

// ItemIDs lists referenced item ids in display order.
func (p *AssessmentPaper) ItemIDs() []string {
	ordered := p.OrderedItems()
	ids := make([]string, len(ordered))
	for i, ref := range ordered {
		ids[i] = ref.ItemID
	}
	return ids
}
