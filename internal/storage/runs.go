package storage

import (
	"encoding/json"
	"slices"
	"sort"

	"github.com/hakim/reconsweep/internal/models"
	"go.etcd.io/bbolt"
)

// SaveRun persists a run metadata record and indexes it under its target
func (s *Store) SaveRun(meta *models.RunMeta) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}

		runs := tx.Bucket([]byte(bucketRuns))
		if err := runs.Put([]byte(meta.ID), data); err != nil {
			return err
		}

		// target -> []run_id
		index := tx.Bucket([]byte(bucketRunIndex))
		targetKey := []byte(meta.Target)

		var runIDs []string
		if existing := index.Get(targetKey); existing != nil {
			if err := json.Unmarshal(existing, &runIDs); err != nil {
				return err
			}
		}

		if slices.Contains(runIDs, meta.ID) {
			return nil
		}
		runIDs = append(runIDs, meta.ID)

		indexData, err := json.Marshal(runIDs)
		if err != nil {
			return err
		}
		return index.Put(targetKey, indexData)
	})
}

// GetRun retrieves a run metadata record by ID. It returns nil, nil when the
// ID is unknown.
func (s *Store) GetRun(id string) (*models.RunMeta, error) {
	var meta *models.RunMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(bucketRuns))
		data := runs.Get([]byte(id))
		if data == nil {
			return nil
		}

		meta = &models.RunMeta{}
		return json.Unmarshal(data, meta)
	})

	return meta, err
}

// ListRuns retrieves all run records for a target, sorted by StartedAt descending
func (s *Store) ListRuns(target string) ([]*models.RunMeta, error) {
	var out []*models.RunMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucketRunIndex))
		data := index.Get([]byte(target))
		if data == nil {
			return nil
		}

		var runIDs []string
		if err := json.Unmarshal(data, &runIDs); err != nil {
			return err
		}

		runs := tx.Bucket([]byte(bucketRuns))
		for _, id := range runIDs {
			runData := runs.Get([]byte(id))
			if runData == nil {
				continue
			}
			var meta models.RunMeta
			if err := json.Unmarshal(runData, &meta); err != nil {
				return err
			}
			out = append(out, &meta)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	return out, nil
}

// GetLatestRun retrieves the most recent run for a target
func (s *Store) GetLatestRun(target string) (*models.RunMeta, error) {
	runs, err := s.ListRuns(target)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}
