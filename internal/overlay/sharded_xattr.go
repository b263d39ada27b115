package overlay

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
)

// xattrPath sidecars a .xattr row next to a file body's .data row, under
// the same shard directory; it is loaded and rewritten whole on every
// mutation, which is adequate for the small number of small attributes
// this engine actually sets (user.sha1 and whatever passthrough callers
// add) rather than the unbounded attribute sets a general xattr store
// would need to handle efficiently.
func (o *ShardedFileOverlay) xattrPath(id inum.Number) string {
	return o.filePath(id) + ".xattr"
}

func (o *ShardedFileOverlay) loadXattrs(id inum.Number) (map[string][]byte, error) {
	data, err := os.ReadFile(o.xattrPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read xattr row")
	}
	raw := map[string]string{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "corrupt xattr row")
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}

func (o *ShardedFileOverlay) saveXattrs(id inum.Number, m map[string][]byte) error {
	if err := o.ensureShardDir(id); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create shard directory")
	}
	raw := make(map[string]string, len(m))
	for k, v := range m {
		raw[k] = string(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not encode xattr row")
	}
	tmp := o.xattrPath(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write xattr row")
	}
	return os.Rename(tmp, o.xattrPath(id))
}

func (o *ShardedFileOverlay) GetXattr(id inum.Number, name string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, err := o.loadXattrs(id)
	if err != nil {
		return nil, err
	}
	v, ok := m[name]
	if !ok {
		return nil, fserrors.Newf(fserrors.NoAttribute, "no such attribute %q", name)
	}
	return v, nil
}

func (o *ShardedFileOverlay) SetXattr(id inum.Number, name string, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, err := o.loadXattrs(id)
	if err != nil {
		return err
	}
	m[name] = value
	return o.saveXattrs(id, m)
}

func (o *ShardedFileOverlay) ListXattr(id inum.Number) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, err := o.loadXattrs(id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (o *ShardedFileOverlay) RemoveXattr(id inum.Number, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, err := o.loadXattrs(id)
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return fserrors.Newf(fserrors.NoAttribute, "no such attribute %q", name)
	}
	delete(m, name)
	return o.saveXattrs(id, m)
}
