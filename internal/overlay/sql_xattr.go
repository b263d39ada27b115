package overlay

import (
	"database/sql"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
)

func (o *SQLOverlay) GetXattr(id inum.Number, name string) ([]byte, error) {
	var value []byte
	err := o.db.QueryRow(`SELECT value FROM xattrs WHERE inode = ? AND name = ?`, uint64(id), name).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, fserrors.Newf(fserrors.NoAttribute, "no such attribute %q", name)
	}
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read xattr")
	}
	return value, nil
}

func (o *SQLOverlay) SetXattr(id inum.Number, name string, value []byte) error {
	_, err := o.db.Exec(`INSERT OR REPLACE INTO xattrs (inode, name, value) VALUES (?, ?, ?)`, uint64(id), name, value)
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write xattr")
	}
	return nil
}

func (o *SQLOverlay) ListXattr(id inum.Number) ([]string, error) {
	rows, err := o.db.Query(`SELECT name FROM xattrs WHERE inode = ? ORDER BY name`, uint64(id))
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not list xattrs")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not scan xattr name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (o *SQLOverlay) RemoveXattr(id inum.Number, name string) error {
	res, err := o.db.Exec(`DELETE FROM xattrs WHERE inode = ? AND name = ?`, uint64(id), name)
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not remove xattr")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not determine xattr delete result")
	}
	if n == 0 {
		return fserrors.Newf(fserrors.NoAttribute, "no such attribute %q", name)
	}
	return nil
}
