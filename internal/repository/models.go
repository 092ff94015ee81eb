package repository

import "time"

// Item is a catalogue entry with an optional image.
type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Description string    `gorm:"column:description;type:text;not null" json:"description"`
	Image       *string   `gorm:"column:image;size:1024" json:"image"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName overrides the default table name.
func (Item) TableName() string {
	return "items"
}

// ItemUpdate holds the fields of an item that may change; nil means unchanged.
type ItemUpdate struct {
	Name        *string
	Description *string
	Image       *string
}

// Photo is a submitted artwork photo.
type Photo struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	URLPhoto   *string   `gorm:"column:url_photo;size:1024" json:"urlPhoto"`
	ImageTitle string    `gorm:"column:image_title;size:255;not null" json:"imageTitle"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName overrides the default table name.
func (Photo) TableName() string {
	return "photos"
}

// Jury is a judge account able to log in and obtain access tokens.
type Jury struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"column:username;size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Email        string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName overrides the default table name.
func (Jury) TableName() string {
	return "juries"
}

// AnalysisRecord is the persisted outcome of one image analysis.
type AnalysisRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID     string    `gorm:"column:user_id;size:64;index"`
	SHA1Hash   string    `gorm:"column:sha1_hash;size:40;index"`
	ImageURL   string    `gorm:"column:image_url;size:1024"`
	Mode       string    `gorm:"column:mode;size:16"`
	IsAI       bool      `gorm:"column:is_ai"`
	Category   string    `gorm:"column:category;size:32"`
	Indicators string    `gorm:"column:indicators;type:text"`
	Payload    string    `gorm:"column:payload;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AnalysisRecord) TableName() string {
	return "analysis_records"
}
