package completion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/loom-archiver/generic"
)

var Buckets = struct {
	Metadata  []byte
	Completed []byte
}{
	Metadata:  []byte("__metadata__"),
	Completed: []byte("completed"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type boltLog struct {
	db *bbolt.DB
}

type completedEntry struct {
	CompletedAt time.Time `json:"completed_at"`
}

// OpenBolt opens (creating if necessary) a bbolt database at path. bbolt holds an exclusive file lock, so a second
// process using the same database fails after a short timeout rather than blocking.
func OpenBolt(path string) (_ Log, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create completion log directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open completion database: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Completed); err != nil {
			return err
		}

		version := 0
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes != nil {
			if err := json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}
		if version > currentVersion {
			return fmt.Errorf("completion database version %d is newer than supported version %d", version, currentVersion)
		}

		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, versionBytes)
	})
	if err != nil {
		return nil, err
	}
	return &boltLog{db}, nil
}

func (l *boltLog) Load() (generic.Set[string], error) {
	completed := generic.NewSet[string]()
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Completed).ForEach(func(k, v []byte) error {
			completed.Add(string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (l *boltLog) MarkCompleted(sourceURL string) error {
	data, err := json.Marshal(completedEntry{CompletedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Completed).Put([]byte(sourceURL), data)
	})
}

func (l *boltLog) Close() error {
	return l.db.Close()
}
