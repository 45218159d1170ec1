package models

// Message is one text sent inside a dialog. Delivered stays false while the
// message waits behind a consent request.
type Message struct {
	BaseModel
	DialogID    string `gorm:"size:36;index;not null" json:"dialogId"`
	SenderID    int64  `gorm:"index;not null" json:"-"`
	RecipientID int64  `gorm:"index;not null" json:"-"`
	Text        string `gorm:"type:text;not null" json:"text"`
	Delivered   bool   `gorm:"default:false" json:"delivered"`
}
