package objectstore

import (
	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/logging"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTrees    = []byte("trees")
	bucketBlobs    = []byte("blobs")
	bucketBlobSha1 = []byte("blob_sha1")
)

// BoltStore is a bbolt-backed ObjectStore kept in a single embedded
// database file, separate from the overlay (which uses sharded files or
// SQLite). It is
// meant for single-host mounts where the import tool writes directly into
// the same file the engine reads from.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) a bbolt-backed object store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not open object store database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketTrees, bucketBlobs, bucketBlobSha1} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not initialize object store buckets")
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// GetTree looks up a tree by hash, parsing and validating it in one pass.
func (s *BoltStore) GetTree(hash objhash.Hash) (*model.Tree, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTrees).Get(hash.Bytes())
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "tree lookup failed")
	}
	if data == nil {
		logging.Debug().Str("hash", hash.String()).Msg("tree not found in object store")
		return nil, nil
	}
	return model.ParseTree(hash, data)
}

// GetBlob looks up a blob by hash.
func (s *BoltStore) GetBlob(hash objhash.Hash) (*model.Blob, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get(hash.Bytes())
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "blob lookup failed")
	}
	if data == nil {
		return nil, nil
	}
	return model.NewBlob(data), nil
}

// GetSha1ForBlob returns the content SHA-1 recorded for hash, falling back
// to hash itself when the store never recorded a distinct mapping (the
// common case when hash already is the content SHA-1).
func (s *BoltStore) GetSha1ForBlob(hash objhash.Hash) (objhash.Hash, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobSha1).Get(hash.Bytes())
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return objhash.Zero, fserrors.Wrap(fserrors.BackendUnavailable, err, "blob sha1 lookup failed")
	}
	if data == nil {
		return hash, nil
	}
	return objhash.FromBytes(data)
}

// PutTree stores a pre-serialized tree body, as used by the (external)
// import path.
func (s *BoltStore) PutTree(hash objhash.Hash, serialized []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrees).Put(hash.Bytes(), serialized)
	})
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "tree write failed")
	}
	return nil
}

// PutBlob stores blob content keyed by its own content hash and returns
// that hash.
func (s *BoltStore) PutBlob(data []byte) (objhash.Hash, error) {
	hash := objhash.Sum(data)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put(hash.Bytes(), data)
	})
	if err != nil {
		return objhash.Zero, fserrors.Wrap(fserrors.BackendUnavailable, err, "blob write failed")
	}
	return hash, nil
}
