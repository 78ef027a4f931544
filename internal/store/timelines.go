package store

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/errors"
)

const timelinePrefix = "timeline:"

// Timeline events broadcast via the EventEmitter.
type (
	// TimelineCreated is emitted after a timeline is first persisted.
	TimelineCreated struct {
		Timeline *domain.Timeline `json:"timeline"`
	}
	// TimelineUpdated is emitted after any persisted change to a timeline.
	TimelineUpdated struct {
		Timeline *domain.Timeline `json:"timeline"`
	}
	// TimelineDeleted is emitted after a timeline is removed.
	TimelineDeleted struct {
		ID string `json:"id"`
	}
)

// CreateTimeline persists a new timeline.
func (s *Store) CreateTimeline(ctx context.Context, tl *domain.Timeline) error {
	key := []byte(timelinePrefix + tl.ID)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check timeline exists: %w", err)
	}
	if exists {
		return errors.AlreadyExists("timeline already exists")
	}

	tl.InitTimestamps()
	if err := s.setTimeline(key, tl); err != nil {
		return fmt.Errorf("create timeline: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("timeline created",
			"id", tl.ID,
			"title", tl.Title,
			"segments", len(tl.Segments),
		)
	}
	s.eventEmitter.Emit(TimelineCreated{Timeline: tl})
	return nil
}

// GetTimeline retrieves a timeline by ID.
func (s *Store) GetTimeline(ctx context.Context, id string) (*domain.Timeline, error) {
	key := []byte(timelinePrefix + id)

	var tl domain.Timeline
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tl)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errors.NotFound("timeline not found")
		}
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	return &tl, nil
}

// ListTimelines returns all timelines in key order.
func (s *Store) ListTimelines(ctx context.Context) ([]*domain.Timeline, error) {
	var timelines []*domain.Timeline

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(timelinePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var tl domain.Timeline
				if err := json.Unmarshal(val, &tl); err != nil {
					return err
				}
				timelines = append(timelines, &tl)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	return timelines, nil
}

// UpdateTimeline persists changes to an existing timeline.
func (s *Store) UpdateTimeline(ctx context.Context, tl *domain.Timeline) error {
	key := []byte(timelinePrefix + tl.ID)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check timeline exists: %w", err)
	}
	if !exists {
		return errors.NotFound("timeline not found")
	}

	tl.Touch()
	if err := s.setTimeline(key, tl); err != nil {
		return fmt.Errorf("update timeline: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("timeline updated", "id", tl.ID, "sync_state", string(tl.SyncState))
	}
	s.eventEmitter.Emit(TimelineUpdated{Timeline: tl})
	return nil
}

// DeleteTimeline removes a timeline.
func (s *Store) DeleteTimeline(ctx context.Context, id string) error {
	key := []byte(timelinePrefix + id)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check timeline exists: %w", err)
	}
	if !exists {
		return errors.NotFound("timeline not found")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("timeline deleted", "id", id)
	}
	s.eventEmitter.Emit(TimelineDeleted{ID: id})
	return nil
}

func (s *Store) setTimeline(key []byte, tl *domain.Timeline) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(tl)
		if err != nil {
			return fmt.Errorf("marshal timeline: %w", err)
		}
		return txn.Set(key, data)
	})
}
