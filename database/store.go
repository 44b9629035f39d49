package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/SirZenith/lazyimg/database/data_model"
	"github.com/SirZenith/lazyimg/media"
	"gorm.io/gorm"
)

// Store is a media.Lookup backed by SQLite media table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// OpenStore opens database at given path and wraps it with a Store.
func OpenStore(filePath string) (*Store, error) {
	db, err := Open(filePath)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	return Close(s.db)
}

func (s *Store) Lookup(ctx context.Context, ref string) (media.Info, error) {
	entry := data_model.MediaEntry{}

	err := s.db.WithContext(ctx).Where("ref = ?", ref).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return media.Info{}, fmt.Errorf("%w: %s", media.ErrNotFound, ref)
	} else if err != nil {
		return media.Info{}, fmt.Errorf("failed to query media %s: %s", ref, err)
	}

	return entry.Info()
}

// Upsert inserts media record or replaces existing one with the same reference.
func (s *Store) Upsert(ctx context.Context, info media.Info) error {
	if info.Ref == "" {
		return fmt.Errorf("media record without reference: %s", info.URL)
	}

	entry, err := data_model.NewMediaEntry(info)
	if err != nil {
		return err
	}

	if err := entry.Upsert(s.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to save media %s: %s", info.Ref, err)
	}

	return nil
}

// List returns all media records ordered by reference.
func (s *Store) List(ctx context.Context) ([]media.Info, error) {
	entries := []data_model.MediaEntry{}
	if err := s.db.WithContext(ctx).Order("ref").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list media: %s", err)
	}

	infos := make([]media.Info, 0, len(entries))
	for i := range entries {
		info, err := entries[i].Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// Delete removes record with given reference. Missing record is reported as
// media.ErrNotFound.
func (s *Store) Delete(ctx context.Context, ref string) error {
	result := s.db.WithContext(ctx).Unscoped().Where("ref = ?", ref).Delete(&data_model.MediaEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete media %s: %s", ref, result.Error)
	} else if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", media.ErrNotFound, ref)
	}
	return nil
}
