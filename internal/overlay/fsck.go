package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/logging"
	"github.com/auriora/edenfs/internal/model"
)

// ErrorKind classifies one problem the consistency checker finds.
type ErrorKind int

const (
	ShardEnumFailure ErrorKind = iota
	UnexpectedFile
	UnexpectedShard
	InodeDataError
	MissingMaterialized
	OrphanInode
	HardLinkedInode
	BadNextInode
)

func (k ErrorKind) String() string {
	switch k {
	case ShardEnumFailure:
		return "ShardEnumFailure"
	case UnexpectedFile:
		return "UnexpectedFile"
	case UnexpectedShard:
		return "UnexpectedShard"
	case InodeDataError:
		return "InodeDataError"
	case MissingMaterialized:
		return "MissingMaterialized"
	case OrphanInode:
		return "OrphanInode"
	case HardLinkedInode:
		return "HardLinkedInode"
	case BadNextInode:
		return "BadNextInode"
	default:
		return "Unknown"
	}
}

// FoundError is one problem ScanForErrors discovered.
type FoundError struct {
	Kind    ErrorKind
	Inode   inum.Number
	Message string
}

// RepairReport is the result of a (possibly dry-run) repair pass.
type RepairReport struct {
	RepairDir   string
	TotalErrors int
	FixedErrors int
}

// ScanForErrors walks every directory row reachable from root, cross
// checking that every materialized directory child has a row of its own, that no
// row exists without a referencing parent, and that the persisted next-id
// watermark exceeds every inode number observed. It never mutates the
// overlay.
func ScanForErrors(backend Backend, root inum.Number, persistedNextID inum.Number) ([]FoundError, error) {
	var errs []FoundError

	referenced := map[inum.Number]bool{root: true}
	seenDirs := map[inum.Number]bool{}
	maxSeen := root

	err := backend.ForEachDir(func(id inum.Number, dir *Dir) error {
		seenDirs[id] = true
		if id > maxSeen {
			maxSeen = id
		}
		for name, entry := range dir.Entries {
			if !entry.Materialized || entry.Kind != model.KindDirectory {
				continue
			}
			childID, ok := inodeFromEntry(entry)
			if !ok {
				continue
			}
			referenced[childID] = true
			has, err := backend.HasDir(childID)
			if err != nil {
				return err
			}
			if !has {
				errs = append(errs, FoundError{
					Kind:    MissingMaterialized,
					Inode:   childID,
					Message: fmt.Sprintf("directory entry %q in inode %d references missing materialized inode %d", name, id, childID),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not enumerate overlay directories during scan")
	}

	for id := range seenDirs {
		if id == root {
			continue
		}
		if !referenced[id] {
			errs = append(errs, FoundError{
				Kind:    OrphanInode,
				Inode:   id,
				Message: fmt.Sprintf("directory row %d is not referenced by any parent", id),
			})
		}
	}

	if err := backend.ForEachFile(func(id inum.Number) error {
		if id > maxSeen {
			maxSeen = id
		}
		return nil
	}); err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not enumerate overlay files during scan")
	}

	if inum.Number(persistedNextID) <= maxSeen {
		errs = append(errs, FoundError{
			Kind:    BadNextInode,
			Inode:   maxSeen,
			Message: fmt.Sprintf("next-inode watermark %d does not exceed observed maximum %d", persistedNextID, maxSeen),
		})
	}

	return errs, nil
}

func inodeFromEntry(entry DirEntry) (inum.Number, bool) {
	if entry.ChildInode == 0 {
		return 0, false
	}
	return entry.ChildInode, true
}

// RepairErrors creates a lost+found directory under the overlay root,
// logs each orphaned and missing-materialized error ScanForErrors reports
// and counts it as fixed, and persists a next-id watermark that exceeds
// every inode number the scan reported. It moves no row into lost+found
// and rewrites or removes no row; errors of other kinds are counted in
// TotalErrors only. It is not a dry run.
func RepairErrors(backend Backend, overlayRoot string, root inum.Number, persistedNextID inum.Number) (RepairReport, error) {
	found, err := ScanForErrors(backend, root, persistedNextID)
	if err != nil {
		return RepairReport{}, err
	}
	report := RepairReport{RepairDir: filepath.Join(overlayRoot, "lost+found"), TotalErrors: len(found)}
	if len(found) == 0 {
		return report, nil
	}
	if err := os.MkdirAll(report.RepairDir, 0700); err != nil {
		return report, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not create lost+found directory")
	}

	next := persistedNextID
	for _, e := range found {
		switch e.Kind {
		case MissingMaterialized, OrphanInode:
			logging.Warn().
				Str("kind", e.Kind.String()).
				Uint64("inode", uint64(e.Inode)).
				Str("message", e.Message).
				Msg("overlay consistency repair")
			report.FixedErrors++
		}
		if e.Inode >= next {
			next = e.Inode + 1
		}
	}
	if err := backend.Close(next); err != nil {
		return report, err
	}
	return report, nil
}
