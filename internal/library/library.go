// Package library indexes saved trajectory documents into the route database
// so past runs can be listed, searched and reloaded across sessions.
package library

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rbignon/ER-Route-tracker/internal/model"
	"github.com/rbignon/ER-Route-tracker/internal/model/convert"
	"github.com/rbignon/ER-Route-tracker/internal/route"
	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// Store reads and writes library rows. Concurrent calls are serialized by
// gorm's connection pool; the high-rate event and performance writes still
// funnel through the worker queue so their insert order matches the order
// they happened in.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Index records a saved route in the library, keyed by file path so a
// rescan never duplicates rows. Returns true when a new row was created.
func (s *Store) Index(doc *core.SavedRoute, filePath, sessionID, gameVersion string) (bool, error) {
	rec := convert.CoreToRoute(*doc, filePath)
	rec.SessionID = sessionID
	rec.GameVersion = gameVersion

	created, err := rec.GetOrInsert(s.db)
	if err != nil {
		return false, fmt.Errorf("index route %s: %w", filePath, err)
	}
	if created {
		s.log.Debug().Str("name", rec.Name).Str("path", filePath).Msg("Indexed route")
	}
	return created, nil
}

// List returns library entries newest first, without their point rows.
// limit <= 0 returns everything.
func (s *Store) List(limit int) ([]model.Route, error) {
	var recs []model.Route
	q := s.db.Order("recorded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return recs, nil
}

// Search returns entries whose name contains the fragment, newest first.
func (s *Store) Search(fragment string) ([]model.Route, error) {
	var recs []model.Route
	pattern := "%" + strings.ToLower(fragment) + "%"
	err := s.db.Where("lower(name) LIKE ?", pattern).
		Order("recorded_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("search routes: %w", err)
	}
	return recs, nil
}

// Get loads one entry with its points and converts it back into a
// trajectory document.
func (s *Store) Get(id uint) (*core.SavedRoute, error) {
	var rec model.Route
	err := s.db.Preload("Points", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&rec, id).Error
	if err != nil {
		return nil, fmt.Errorf("load route %d: %w", id, err)
	}
	doc := convert.RouteToCore(rec)
	return &doc, nil
}

// Row returns one entry without its point rows, for callers that need the
// file path or metadata but not the trajectory itself.
func (s *Store) Row(id uint) (*model.Route, error) {
	var rec model.Route
	if err := s.db.First(&rec, id).Error; err != nil {
		return nil, fmt.Errorf("load route %d: %w", id, err)
	}
	return &rec, nil
}

// Delete removes an entry and its point rows. The trajectory document on
// disk is left alone; a rescan would re-index it.
func (s *Store) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_id = ?", id).Delete(&model.RoutePoint{}).Error; err != nil {
			return fmt.Errorf("delete route points: %w", err)
		}
		if err := tx.Unscoped().Delete(&model.Route{}, id).Error; err != nil {
			return fmt.Errorf("delete route: %w", err)
		}
		return nil
	})
}

// Rescan walks the routes directory and indexes any documents not yet in
// the library. Corrupt documents are skipped, not fatal. Returns how many
// new entries were added.
func (s *Store) Rescan(dir string) (int, error) {
	names, err := route.List(dir)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := route.Load(path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable route document")
			continue
		}
		created, err := s.Index(doc, path, "", "")
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}

// RecordEvent persists one session event row.
func (s *Store) RecordEvent(e model.TrackerEvent) error {
	if err := s.db.Create(&e).Error; err != nil {
		return fmt.Errorf("record event %s: %w", e.Name, err)
	}
	return nil
}

// RecordPerformance persists one performance sample row.
func (s *Store) RecordPerformance(p model.TrackerPerformance) error {
	if err := s.db.Create(&p).Error; err != nil {
		return fmt.Errorf("record performance sample: %w", err)
	}
	return nil
}
