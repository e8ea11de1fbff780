package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlobObject and BlobChunk back the database blob driver: binaries split into
// fixed-size chunk rows under an object header, GridFS style. Only used when
// BLOB_DRIVER=database.
type BlobObject struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	Key         string    `gorm:"column:object_key;size:255;uniqueIndex;not null" json:"key"`
	ContentType string    `gorm:"size:128" json:"contentType"`
	Size        int64     `gorm:"not null" json:"size"`
	CreatedAt   time.Time `json:"createdAt"`

	Chunks []BlobChunk `gorm:"foreignKey:ObjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func (b *BlobObject) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (BlobObject) TableName() string {
	return "blob_objects"
}

type BlobChunk struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ObjectID string `gorm:"type:char(36);not null;index:idx_blob_chunk,unique"`
	Seq      int    `gorm:"not null;index:idx_blob_chunk,unique"`
	Data     []byte `gorm:"type:blob"`
}

func (BlobChunk) TableName() string {
	return "blob_chunks"
}
