package model

import "time"

// Values stored in UploadedFile.Status
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusNoCredits  = "no credits"
	StatusFailed     = "failed"
)

type UploadedFile struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"-"`
	// Always <id>/original.mp4. The first segment doubles as the prefix the
	// processing endpoint writes clips under
	S3Key       string `gorm:"uniqueIndex;not null" json:"s3Key"`
	DisplayName string `json:"filename"`
	// Flipped false -> true exactly once, when the processing event is sent
	Uploaded bool `gorm:"not null;default:false" json:"-"`
	// Owned by the processing workflow once the event fired
	Status    string    `gorm:"not null;default:queued" json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	Clips []Clip `gorm:"foreignKey:UploadedFileID" json:"-"`
}
