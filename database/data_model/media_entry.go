package data_model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/media"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MediaEntry struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Ref string `gorm:"primaryKey"`

	URL       string
	Width     int
	Height    int
	Extension string

	HasFocalPoint bool
	FocalLeft     float64
	FocalTop      float64

	Crops string // JSON array of crop definitions, empty when there is none
}

func (entry *MediaEntry) Upsert(db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ref"}},
		UpdateAll: true,
	}).Create(entry).Error
}

// NewMediaEntry converts media info into database entry.
func NewMediaEntry(info media.Info) (*MediaEntry, error) {
	entry := &MediaEntry{
		Ref:       info.Ref,
		URL:       info.URL,
		Width:     info.Width,
		Height:    info.Height,
		Extension: common.NormalizeImageFormat(info.Extension),
	}

	if fp := info.FocalPoint; fp != nil {
		entry.HasFocalPoint = true
		entry.FocalLeft = fp.Left
		entry.FocalTop = fp.Top
	}

	if len(info.Crops) > 0 {
		data, err := json.Marshal(info.Crops)
		if err != nil {
			return nil, fmt.Errorf("failed to encode crops of %s: %s", info.Ref, err)
		}
		entry.Crops = string(data)
	}

	return entry, nil
}

// Info converts entry back to media info.
func (entry *MediaEntry) Info() (media.Info, error) {
	info := media.Info{
		Ref:       entry.Ref,
		URL:       entry.URL,
		Width:     entry.Width,
		Height:    entry.Height,
		Extension: entry.Extension,
	}

	if entry.HasFocalPoint {
		info.FocalPoint = &crop.FocalPoint{
			Left: entry.FocalLeft,
			Top:  entry.FocalTop,
		}
	}

	if entry.Crops != "" {
		if err := json.Unmarshal([]byte(entry.Crops), &info.Crops); err != nil {
			return info, fmt.Errorf("broken crop data for %s: %s", entry.Ref, err)
		}
	}

	return info, nil
}
