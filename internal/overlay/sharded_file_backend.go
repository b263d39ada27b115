package overlay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/logging"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/pathname"
)

// ShardedFileOverlay is the flat-file overlay layout: every row lives at
// its own path under the overlay root, fanned out into 256 shard
// directories by the low byte of the inode number so no single directory
// ever holds every mount's worth of entries (the same sharding strategy
// git's loose-object store uses). It does not support semantic child
// operations; callers fall back to LoadDir/SaveDir read-modify-write.
type ShardedFileOverlay struct {
	root string
	mu   sync.Mutex
}

const watermarkFileName = "next-inode"
const cleanShutdownMarker = "clean-shutdown"

// NewShardedFileOverlay constructs a backend rooted at dir. Init creates
// the directory if it is missing and createIfMissing is set; shard
// subdirectories are created lazily.
func NewShardedFileOverlay(dir string) *ShardedFileOverlay {
	return &ShardedFileOverlay{root: dir}
}

func shard(id inum.Number) string {
	return fmt.Sprintf("%02x", byte(id))
}

func (o *ShardedFileOverlay) dirPath(id inum.Number) string {
	return filepath.Join(o.root, shard(id), fmt.Sprintf("%d.dir", id))
}

func (o *ShardedFileOverlay) filePath(id inum.Number) string {
	return filepath.Join(o.root, shard(id), fmt.Sprintf("%d.data", id))
}

func (o *ShardedFileOverlay) ensureShardDir(id inum.Number) error {
	return os.MkdirAll(filepath.Join(o.root, shard(id)), 0700)
}

func (o *ShardedFileOverlay) Init(createIfMissing bool) (*inum.Number, error) {
	if _, err := os.Stat(o.root); err != nil {
		if !os.IsNotExist(err) {
			return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not stat overlay root")
		}
		if !createIfMissing {
			return nil, fserrors.New(fserrors.BackendUnavailable, "overlay root does not exist")
		}
		if err := os.MkdirAll(o.root, 0700); err != nil {
			return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create overlay root")
		}
	}

	cleanPath := filepath.Join(o.root, cleanShutdownMarker)
	_, statErr := os.Stat(cleanPath)
	wasClean := statErr == nil
	_ = os.Remove(cleanPath)

	if !wasClean {
		logging.Warn().Str("root", o.root).Msg("overlay was not shut down cleanly")
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(o.root, watermarkFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read next-inode watermark")
	}
	var next uint64
	if _, err := fmt.Sscanf(string(data), "%d", &next); err != nil {
		return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "malformed next-inode watermark")
	}
	n := inum.Number(next)
	return &n, nil
}

func (o *ShardedFileOverlay) Close(next inum.Number) error {
	tmp := filepath.Join(o.root, watermarkFileName+".tmp")
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d", uint64(next))), 0600); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write next-inode watermark")
	}
	if err := os.Rename(tmp, filepath.Join(o.root, watermarkFileName)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not install next-inode watermark")
	}
	if err := os.WriteFile(filepath.Join(o.root, cleanShutdownMarker), nil, 0600); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write clean shutdown marker")
	}
	return nil
}

type jsonDirEntry struct {
	Mode         uint32      `json:"mode"`
	Kind         uint8       `json:"kind"`
	Materialized bool        `json:"materialized"`
	ChildHash    *string     `json:"child_hash,omitempty"`
	ChildInode   inum.Number `json:"child_inode,omitempty"`
}

func (o *ShardedFileOverlay) LoadDir(id inum.Number) (*Dir, error) {
	data, err := os.ReadFile(o.dirPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read directory row")
	}
	return decodeDir(data)
}

func encodeDir(d *Dir) ([]byte, error) {
	raw := make(map[string]jsonDirEntry, len(d.Entries))
	for name, e := range d.Entries {
		je := jsonDirEntry{Mode: e.Mode, Kind: uint8(e.Kind), Materialized: e.Materialized, ChildInode: e.ChildInode}
		if e.ChildHash != nil {
			s := e.ChildHash.String()
			je.ChildHash = &s
		}
		raw[string(name)] = je
	}
	return json.Marshal(raw)
}

func decodeDir(data []byte) (*Dir, error) {
	var raw map[string]jsonDirEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "corrupt directory row")
	}
	d := NewDir()
	for name, je := range raw {
		entry := DirEntry{Mode: je.Mode, Materialized: je.Materialized, Kind: model.Kind(je.Kind), ChildInode: je.ChildInode}
		if je.ChildHash != nil {
			h, err := objhash.FromHex(*je.ChildHash)
			if err != nil {
				return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "corrupt directory row child hash")
			}
			entry.ChildHash = &h
		}
		comp, err := pathname.NewComponent(name)
		if err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "corrupt directory row entry name")
		}
		d.Entries[comp] = entry
	}
	return d, nil
}

func (o *ShardedFileOverlay) SaveDir(id inum.Number, dir *Dir) error {
	if err := o.ensureShardDir(id); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create shard directory")
	}
	data, err := encodeDir(dir)
	if err != nil {
		return err
	}
	tmp := o.dirPath(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write directory row")
	}
	if err := os.Rename(tmp, o.dirPath(id)); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not install directory row")
	}
	return nil
}

func (o *ShardedFileOverlay) LoadAndRemoveDir(id inum.Number) (*Dir, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, err := o.LoadDir(id)
	if err != nil || d == nil {
		return d, err
	}
	if err := os.Remove(o.dirPath(id)); err != nil && !os.IsNotExist(err) {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not remove directory row")
	}
	return d, nil
}

func (o *ShardedFileOverlay) RemoveDir(id inum.Number) error {
	d, err := o.LoadDir(id)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	if len(d.Entries) > 0 {
		return fserrors.Newf(fserrors.NotEmpty, "overlay directory %d is not empty", id)
	}
	if err := os.Remove(o.dirPath(id)); err != nil && !os.IsNotExist(err) {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not remove directory row")
	}
	return nil
}

func (o *ShardedFileOverlay) HasDir(id inum.Number) (bool, error) {
	_, err := os.Stat(o.dirPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not stat directory row")
}

// SupportsSemanticOperations is false: this backend requires the
// read-modify-write fallback via LoadDir/SaveDir.
func (o *ShardedFileOverlay) SupportsSemanticOperations() bool { return false }

func (o *ShardedFileOverlay) AddChild(inum.Number, pathname.Component, DirEntry) error {
	return fserrors.New(fserrors.NotImplemented, "sharded file overlay does not support semantic child operations")
}

func (o *ShardedFileOverlay) RemoveChild(inum.Number, pathname.Component) error {
	return fserrors.New(fserrors.NotImplemented, "sharded file overlay does not support semantic child operations")
}

func (o *ShardedFileOverlay) HasChild(inum.Number, pathname.Component) (bool, error) {
	return false, fserrors.New(fserrors.NotImplemented, "sharded file overlay does not support semantic child operations")
}

func (o *ShardedFileOverlay) RenameChild(inum.Number, inum.Number, pathname.Component, pathname.Component) error {
	return fserrors.New(fserrors.NotImplemented, "sharded file overlay does not support semantic child operations")
}

type shardedFile struct {
	mu sync.Mutex
	f  *os.File
}

func (sf *shardedFile) ReadAt(p []byte, off int64) (int, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.f.ReadAt(p, off)
}

func (sf *shardedFile) WriteAt(p []byte, off int64) (int, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.f.WriteAt(p, off)
}

func (sf *shardedFile) Truncate(size int64) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.f.Truncate(size)
}

func (sf *shardedFile) Size() (int64, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	info, err := sf.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (sf *shardedFile) Sync() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.f.Sync()
}

func (sf *shardedFile) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.f.Close()
}

func (o *ShardedFileOverlay) CreateOverlayFile(id inum.Number, initial []byte) (File, error) {
	if err := o.ensureShardDir(id); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create shard directory")
	}
	f, err := os.OpenFile(o.filePath(id), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create overlay file body")
	}
	if _, err := f.Write(initial); err != nil {
		f.Close()
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write overlay file body")
	}
	return &shardedFile{f: f}, nil
}

func (o *ShardedFileOverlay) openFile(id inum.Number) (*shardedFile, error) {
	f, err := os.OpenFile(o.filePath(id), os.O_RDWR, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fserrors.Newf(fserrors.NoEntry, "no overlay file body for inode %d", id)
		}
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not open overlay file body")
	}
	return &shardedFile{f: f}, nil
}

func (o *ShardedFileOverlay) OpenOverlayFile(id inum.Number, expectedTag HeaderTag) (File, error) {
	sf, err := o.openFile(id)
	if err != nil {
		return nil, err
	}
	var hdr [HeaderSize]byte
	if _, err := sf.f.ReadAt(hdr[:], 0); err != nil && err != io.EOF {
		sf.Close()
		return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "could not read overlay file header")
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		sf.Close()
		return nil, err
	}
	if h.Tag != expectedTag {
		sf.Close()
		return nil, fserrors.Newf(fserrors.CorruptSnapshot, "overlay file header tag mismatch for inode %d", id)
	}
	return sf, nil
}

func (o *ShardedFileOverlay) OpenOverlayFileNoVerify(id inum.Number) (File, error) {
	return o.openFile(id)
}

func (o *ShardedFileOverlay) RemoveFile(id inum.Number) error {
	if err := os.Remove(o.filePath(id)); err != nil && !os.IsNotExist(err) {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not remove overlay file body")
	}
	return nil
}

func (o *ShardedFileOverlay) ForEachDir(fn func(id inum.Number, dir *Dir) error) error {
	return o.walk(".dir", func(id inum.Number) error {
		d, err := o.LoadDir(id)
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		return fn(id, d)
	})
}

func (o *ShardedFileOverlay) ForEachFile(fn func(id inum.Number) error) error {
	return o.walk(".data", fn)
}

func (o *ShardedFileOverlay) walk(suffix string, fn func(id inum.Number) error) error {
	entries, err := os.ReadDir(o.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not enumerate overlay root")
	}
	for _, shardEntry := range entries {
		if !shardEntry.IsDir() {
			continue
		}
		shardPath := filepath.Join(o.root, shardEntry.Name())
		rows, err := os.ReadDir(shardPath)
		if err != nil {
			return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not enumerate overlay shard")
		}
		for _, row := range rows {
			name := row.Name()
			if filepath.Ext(name) != suffix {
				continue
			}
			base := name[:len(name)-len(suffix)]
			var id uint64
			if _, err := fmt.Sscanf(base, "%d", &id); err != nil {
				continue
			}
			if err := fn(inum.Number(id)); err != nil {
				return err
			}
		}
	}
	return nil
}
