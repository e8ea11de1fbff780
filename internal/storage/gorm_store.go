package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openbrgy/portal/internal/models"
	"gorm.io/gorm"
)

// chunkSize mirrors the 255KiB GridFS default.
const chunkSize = 255 * 1024

// GormStore implements BlobStore on database rows: an object header plus
// fixed-size chunk rows. Lets sqlite-only deployments and tests run without
// an object store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Put stores the full binary inside one transaction. An existing object under
// the same key is replaced atomically.
func (s *GormStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("blob size mismatch: declared %d, read %d", size, len(data))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.BlobObject
		err := tx.Where("object_key = ?", key).First(&existing).Error
		if err == nil {
			if err := tx.Where("object_id = ?", existing.ID).Delete(&models.BlobChunk{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		obj := models.BlobObject{
			Key:         key,
			ContentType: contentType,
			Size:        int64(len(data)),
		}
		if err := tx.Create(&obj).Error; err != nil {
			return err
		}

		for seq, off := 0, 0; off < len(data); seq, off = seq+1, off+chunkSize {
			end := off + chunkSize
			if end > len(data) {
				end = len(data)
			}
			chunk := models.BlobChunk{ObjectID: obj.ID, Seq: seq, Data: data[off:end]}
			if err := tx.Create(&chunk).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Get reassembles the chunks for a key.
func (s *GormStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var obj models.BlobObject
	if err := s.db.WithContext(ctx).Where("object_key = ?", key).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}

	var chunks []models.BlobChunk
	if err := s.db.WithContext(ctx).
		Where("object_id = ?", obj.ID).
		Order("seq ASC").
		Find(&chunks).Error; err != nil {
		return nil, ObjectInfo{}, err
	}

	var buf bytes.Buffer
	buf.Grow(int(obj.Size))
	for _, c := range chunks {
		buf.Write(c.Data)
	}

	info := ObjectInfo{Key: key, ContentType: obj.ContentType, Size: obj.Size}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), info, nil
}

// Stat returns object metadata.
func (s *GormStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	var obj models.BlobObject
	if err := s.db.WithContext(ctx).Where("object_key = ?", key).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, ContentType: obj.ContentType, Size: obj.Size}, nil
}

// Delete removes the object header and its chunks.
func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var obj models.BlobObject
		if err := tx.Where("object_key = ?", key).First(&obj).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("object_id = ?", obj.ID).Delete(&models.BlobChunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&obj).Error
	})
}
