package model

import "time"

type Clip struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	S3Key          string    `gorm:"uniqueIndex;not null" json:"s3Key"`
	UserID         string    `gorm:"index;not null" json:"-"`
	UploadedFileID string    `gorm:"index;not null" json:"uploadedFileId"`
	CreatedAt      time.Time `json:"createdAt"`
}
