package overlay

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/pathname"
)

// SQLOverlay is the semantic overlay backend: directory rows and their
// children live in normalized tables, so AddChild/RemoveChild/RenameChild
// run as single transactions rather than the sharded file backend's
// read-modify-write. Grounded on the same child-operation contract the
// original EdenFS TreeOverlayStore provides over SQLite.
type SQLOverlay struct {
	db *sql.DB
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS dirs (
	inode INTEGER PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS entries (
	parent INTEGER NOT NULL,
	name TEXT NOT NULL,
	mode INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	materialized INTEGER NOT NULL,
	child_hash TEXT,
	child_inode INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (parent, name),
	FOREIGN KEY (parent) REFERENCES dirs(inode)
);
CREATE TABLE IF NOT EXISTS files (
	inode INTEGER PRIMARY KEY,
	tag INTEGER NOT NULL,
	version INTEGER NOT NULL,
	atime_sec INTEGER NOT NULL,
	atime_nsec INTEGER NOT NULL,
	mtime_sec INTEGER NOT NULL,
	mtime_nsec INTEGER NOT NULL,
	ctime_sec INTEGER NOT NULL,
	ctime_nsec INTEGER NOT NULL,
	body BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS xattrs (
	inode INTEGER NOT NULL,
	name TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (inode, name)
);
`

// OpenSQLOverlay opens (creating if needed) a SQLite-backed overlay at path.
func OpenSQLOverlay(path string) (*SQLOverlay, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not open sqlite overlay")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not apply sqlite overlay schema")
	}
	return &SQLOverlay{db: db}, nil
}

func (o *SQLOverlay) Init(createIfMissing bool) (*inum.Number, error) {
	var wasClean string
	err := o.db.QueryRow(`SELECT value FROM meta WHERE key = 'clean_shutdown'`).Scan(&wasClean)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay shutdown marker")
	}
	if _, err := o.db.Exec(`DELETE FROM meta WHERE key = 'clean_shutdown'`); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not clear overlay shutdown marker")
	}

	var nextStr string
	err = o.db.QueryRow(`SELECT value FROM meta WHERE key = 'next_inode'`).Scan(&nextStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read next-inode watermark")
	}
	var next uint64
	if _, err := fmt.Sscanf(nextStr, "%d", &next); err != nil {
		return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "malformed next-inode watermark")
	}
	n := inum.Number(next)
	return &n, nil
}

func (o *SQLOverlay) Close(next inum.Number) error {
	tx, err := o.db.Begin()
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not begin overlay shutdown transaction")
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('next_inode', ?)`, fmt.Sprintf("%d", uint64(next))); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not persist next-inode watermark")
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('clean_shutdown', '1')`); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not persist clean shutdown marker")
	}
	if err := tx.Commit(); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not commit overlay shutdown transaction")
	}
	return o.db.Close()
}

func scanEntries(rows *sql.Rows) (*Dir, error) {
	defer rows.Close()
	d := NewDir()
	for rows.Next() {
		var name string
		var mode uint32
		var kind uint8
		var materialized bool
		var childHash sql.NullString
		var childInode uint64
		if err := rows.Scan(&name, &mode, &kind, &materialized, &childHash, &childInode); err != nil {
			return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not scan directory entry row")
		}
		comp, err := pathname.NewComponent(name)
		if err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "corrupt directory entry name")
		}
		entry := DirEntry{Mode: mode, Kind: model.Kind(kind), Materialized: materialized, ChildInode: inum.Number(childInode)}
		if childHash.Valid {
			h, err := objhash.FromHex(childHash.String)
			if err != nil {
				return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "corrupt directory entry child hash")
			}
			entry.ChildHash = &h
		}
		d.Entries[comp] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "error iterating directory entry rows")
	}
	return d, nil
}

func (o *SQLOverlay) LoadDir(id inum.Number) (*Dir, error) {
	var exists int
	err := o.db.QueryRow(`SELECT 1 FROM dirs WHERE inode = ?`, uint64(id)).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not check directory existence")
	}
	rows, err := o.db.Query(`SELECT name, mode, kind, materialized, child_hash, child_inode FROM entries WHERE parent = ?`, uint64(id))
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not query directory entries")
	}
	return scanEntries(rows)
}

func (o *SQLOverlay) SaveDir(id inum.Number, dir *Dir) error {
	tx, err := o.db.Begin()
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not begin directory save transaction")
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT OR IGNORE INTO dirs (inode) VALUES (?)`, uint64(id)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not upsert directory row")
	}
	if _, err := tx.Exec(`DELETE FROM entries WHERE parent = ?`, uint64(id)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not clear directory entries")
	}
	for name, e := range dir.Entries {
		var childHash interface{}
		if e.ChildHash != nil {
			childHash = e.ChildHash.String()
		}
		if _, err := tx.Exec(`INSERT INTO entries (parent, name, mode, kind, materialized, child_hash, child_inode) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uint64(id), string(name), e.Mode, uint8(e.Kind), e.Materialized, childHash, uint64(e.ChildInode)); err != nil {
			return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not insert directory entry")
		}
	}
	if err := tx.Commit(); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not commit directory save transaction")
	}
	return nil
}

func (o *SQLOverlay) LoadAndRemoveDir(id inum.Number) (*Dir, error) {
	d, err := o.LoadDir(id)
	if err != nil || d == nil {
		return d, err
	}
	tx, err := o.db.Begin()
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not begin directory removal transaction")
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM entries WHERE parent = ?`, uint64(id)); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not delete directory entries")
	}
	if _, err := tx.Exec(`DELETE FROM dirs WHERE inode = ?`, uint64(id)); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not delete directory row")
	}
	if err := tx.Commit(); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not commit directory removal transaction")
	}
	return d, nil
}

func (o *SQLOverlay) RemoveDir(id inum.Number) error {
	var count int
	if err := o.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE parent = ?`, uint64(id)).Scan(&count); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not count directory entries")
	}
	if count > 0 {
		return fserrors.Newf(fserrors.NotEmpty, "overlay directory %d is not empty", id)
	}
	if _, err := o.db.Exec(`DELETE FROM dirs WHERE inode = ?`, uint64(id)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not delete directory row")
	}
	return nil
}

func (o *SQLOverlay) HasDir(id inum.Number) (bool, error) {
	var exists int
	err := o.db.QueryRow(`SELECT 1 FROM dirs WHERE inode = ?`, uint64(id)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not check directory existence")
	}
	return true, nil
}

// SupportsSemanticOperations is true: AddChild/RemoveChild/HasChild/
// RenameChild all run as single SQL transactions.
func (o *SQLOverlay) SupportsSemanticOperations() bool { return true }

func (o *SQLOverlay) AddChild(parent inum.Number, name pathname.Component, entry DirEntry) error {
	var childHash interface{}
	if entry.ChildHash != nil {
		childHash = entry.ChildHash.String()
	}
	tx, err := o.db.Begin()
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not begin add-child transaction")
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT OR IGNORE INTO dirs (inode) VALUES (?)`, uint64(parent)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not upsert parent directory row")
	}
	_, err = tx.Exec(`INSERT INTO entries (parent, name, mode, kind, materialized, child_hash, child_inode) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uint64(parent), string(name), entry.Mode, uint8(entry.Kind), entry.Materialized, childHash, uint64(entry.ChildInode))
	if err != nil {
		return fserrors.Wrapf(fserrors.Exists, err, "child %q already exists", name)
	}
	if err := tx.Commit(); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not commit add-child transaction")
	}
	return nil
}

func (o *SQLOverlay) RemoveChild(parent inum.Number, name pathname.Component) error {
	res, err := o.db.Exec(`DELETE FROM entries WHERE parent = ? AND name = ?`, uint64(parent), string(name))
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not delete directory entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not determine delete result")
	}
	if n == 0 {
		return fserrors.Newf(fserrors.NoEntry, "no such child %q", name)
	}
	return nil
}

func (o *SQLOverlay) HasChild(parent inum.Number, name pathname.Component) (bool, error) {
	var exists int
	err := o.db.QueryRow(`SELECT 1 FROM entries WHERE parent = ? AND name = ?`, uint64(parent), string(name)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not query directory entry")
	}
	return true, nil
}

func (o *SQLOverlay) RenameChild(src, dst inum.Number, srcName, dstName pathname.Component) error {
	tx, err := o.db.Begin()
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not begin rename transaction")
	}
	defer tx.Rollback()

	var mode uint32
	var kind uint8
	var materialized bool
	var childHash sql.NullString
	var childInode uint64
	err = tx.QueryRow(`SELECT mode, kind, materialized, child_hash, child_inode FROM entries WHERE parent = ? AND name = ?`,
		uint64(src), string(srcName)).Scan(&mode, &kind, &materialized, &childHash, &childInode)
	if err == sql.ErrNoRows {
		return fserrors.Newf(fserrors.NoEntry, "no such child %q", srcName)
	}
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read rename source entry")
	}

	if _, err := tx.Exec(`DELETE FROM entries WHERE parent = ? AND name = ?`, uint64(dst), string(dstName)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not clear rename destination entry")
	}
	if _, err := tx.Exec(`DELETE FROM entries WHERE parent = ? AND name = ?`, uint64(src), string(srcName)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not delete rename source entry")
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO dirs (inode) VALUES (?)`, uint64(dst)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not upsert rename destination directory row")
	}
	var childHashVal interface{}
	if childHash.Valid {
		childHashVal = childHash.String
	}
	if _, err := tx.Exec(`INSERT INTO entries (parent, name, mode, kind, materialized, child_hash, child_inode) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uint64(dst), string(dstName), mode, kind, materialized, childHashVal, childInode); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not insert rename destination entry")
	}
	if err := tx.Commit(); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not commit rename transaction")
	}
	return nil
}

type sqlFile struct {
	o  *SQLOverlay
	id inum.Number
}

func (f *sqlFile) ReadAt(p []byte, off int64) (int, error) {
	var body []byte
	if err := f.o.db.QueryRow(`SELECT body FROM files WHERE inode = ?`, uint64(f.id)).Scan(&body); err != nil {
		return 0, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay file body")
	}
	if off >= int64(len(body)) {
		return 0, nil
	}
	n := copy(p, body[off:])
	return n, nil
}

func (f *sqlFile) WriteAt(p []byte, off int64) (int, error) {
	var body []byte
	if err := f.o.db.QueryRow(`SELECT body FROM files WHERE inode = ?`, uint64(f.id)).Scan(&body); err != nil {
		return 0, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay file body")
	}
	needed := off + int64(len(p))
	if needed > int64(len(body)) {
		grown := make([]byte, needed)
		copy(grown, body)
		body = grown
	}
	copy(body[off:], p)
	if _, err := f.o.db.Exec(`UPDATE files SET body = ? WHERE inode = ?`, body, uint64(f.id)); err != nil {
		return 0, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write overlay file body")
	}
	return len(p), nil
}

func (f *sqlFile) Truncate(size int64) error {
	var body []byte
	if err := f.o.db.QueryRow(`SELECT body FROM files WHERE inode = ?`, uint64(f.id)).Scan(&body); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay file body")
	}
	if size <= int64(len(body)) {
		body = body[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, body)
		body = grown
	}
	if _, err := f.o.db.Exec(`UPDATE files SET body = ? WHERE inode = ?`, body, uint64(f.id)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not truncate overlay file body")
	}
	return nil
}

func (f *sqlFile) Size() (int64, error) {
	var body []byte
	if err := f.o.db.QueryRow(`SELECT body FROM files WHERE inode = ?`, uint64(f.id)).Scan(&body); err != nil {
		return 0, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay file body")
	}
	return int64(len(body)), nil
}

func (f *sqlFile) Sync() error { return nil }
func (f *sqlFile) Close() error { return nil }

func (o *SQLOverlay) CreateOverlayFile(id inum.Number, initial []byte) (File, error) {
	ts := FromTime(time.Now())
	_, err := o.db.Exec(`INSERT OR REPLACE INTO files (inode, tag, version, atime_sec, atime_nsec, mtime_sec, mtime_nsec, ctime_sec, ctime_nsec, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uint64(id), int(TagFile), HeaderVersion, ts.Seconds, ts.Nanoseconds, ts.Seconds, ts.Nanoseconds, ts.Seconds, ts.Nanoseconds, initial)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create overlay file body")
	}
	return &sqlFile{o: o, id: id}, nil
}

func (o *SQLOverlay) OpenOverlayFile(id inum.Number, expectedTag HeaderTag) (File, error) {
	var tag int
	err := o.db.QueryRow(`SELECT tag FROM files WHERE inode = ?`, uint64(id)).Scan(&tag)
	if err == sql.ErrNoRows {
		return nil, fserrors.Newf(fserrors.NoEntry, "no overlay file body for inode %d", id)
	}
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay file header")
	}
	if HeaderTag(tag) != expectedTag {
		return nil, fserrors.Newf(fserrors.CorruptSnapshot, "overlay file header tag mismatch for inode %d", id)
	}
	return &sqlFile{o: o, id: id}, nil
}

func (o *SQLOverlay) OpenOverlayFileNoVerify(id inum.Number) (File, error) {
	var exists int
	err := o.db.QueryRow(`SELECT 1 FROM files WHERE inode = ?`, uint64(id)).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fserrors.Newf(fserrors.NoEntry, "no overlay file body for inode %d", id)
	}
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not check overlay file existence")
	}
	return &sqlFile{o: o, id: id}, nil
}

func (o *SQLOverlay) RemoveFile(id inum.Number) error {
	if _, err := o.db.Exec(`DELETE FROM files WHERE inode = ?`, uint64(id)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not remove overlay file body")
	}
	return nil
}

func (o *SQLOverlay) ForEachDir(fn func(id inum.Number, dir *Dir) error) error {
	rows, err := o.db.Query(`SELECT inode FROM dirs`)
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not enumerate overlay directories")
	}
	var ids []inum.Number
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not scan directory inode")
		}
		ids = append(ids, inum.Number(id))
	}
	rows.Close()
	for _, id := range ids {
		d, err := o.LoadDir(id)
		if err != nil {
			return err
		}
		if err := fn(id, d); err != nil {
			return err
		}
	}
	return nil
}

func (o *SQLOverlay) ForEachFile(fn func(id inum.Number) error) error {
	rows, err := o.db.Query(`SELECT inode FROM files`)
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not enumerate overlay files")
	}
	var ids []inum.Number
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not scan file inode")
		}
		ids = append(ids, inum.Number(id))
	}
	rows.Close()
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}
