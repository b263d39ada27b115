package overlay

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
)

var snapshotMagic = [4]byte{'e', 'd', 'e', 'n'}

const snapshotVersion uint32 = 1
const snapshotHeaderLen = 8 // magic + version
const snapshotLenOneParent = snapshotHeaderLen + objhash.Size
const snapshotLenTwoParents = snapshotHeaderLen + 2*objhash.Size
const legacyHexLen = objhash.Size * 2

// ReadSnapshotMarker parses the per-mount snapshot marker at path. It
// accepts both the current magic-prefixed format and the legacy bare
// 40-character hex commit id (optionally trailed by whitespace), but
// WriteSnapshotMarker only ever produces the current format.
func ReadSnapshotMarker(path string) (model.ParentCommits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ParentCommits{}, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read snapshot marker")
	}
	return ParseSnapshotMarker(data)
}

// ParseSnapshotMarker decodes the raw bytes of a snapshot marker file.
func ParseSnapshotMarker(data []byte) (model.ParentCommits, error) {
	if bytes.HasPrefix(data, snapshotMagic[:]) {
		return parseCurrentSnapshot(data)
	}
	return parseLegacySnapshot(data)
}

func parseCurrentSnapshot(data []byte) (model.ParentCommits, error) {
	if len(data) != snapshotLenOneParent && len(data) != snapshotLenTwoParents {
		return model.ParentCommits{}, fserrors.Newf(fserrors.CorruptSnapshot,
			"snapshot marker has impossible length %d", len(data))
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != snapshotVersion {
		return model.ParentCommits{}, fserrors.Newf(fserrors.CorruptSnapshot,
			"snapshot marker has unsupported version %d", version)
	}
	parent1, err := objhash.FromBytes(data[8:28])
	if err != nil {
		return model.ParentCommits{}, fserrors.Wrap(fserrors.CorruptSnapshot, err, "malformed snapshot parent1")
	}
	result := model.ParentCommits{Parent1: parent1}
	if len(data) == snapshotLenTwoParents {
		parent2, err := objhash.FromBytes(data[28:48])
		if err != nil {
			return model.ParentCommits{}, fserrors.Wrap(fserrors.CorruptSnapshot, err, "malformed snapshot parent2")
		}
		result.Parent2 = &parent2
	}
	return result, nil
}

func parseLegacySnapshot(data []byte) (model.ParentCommits, error) {
	trimmed := strings.TrimRight(string(data), " \t\r\n")
	if len(trimmed) != legacyHexLen {
		return model.ParentCommits{}, fserrors.Newf(fserrors.CorruptSnapshot,
			"legacy snapshot marker must be %d hex characters, got %d", legacyHexLen, len(trimmed))
	}
	parent1, err := objhash.FromHex(trimmed)
	if err != nil {
		return model.ParentCommits{}, fserrors.Wrap(fserrors.CorruptSnapshot, err, "malformed legacy snapshot marker")
	}
	return model.ParentCommits{Parent1: parent1}, nil
}

// WriteSnapshotMarker atomically replaces the marker at path with the
// current magic-prefixed encoding of commits, via a temp file and rename.
func WriteSnapshotMarker(path string, commits model.ParentCommits) error {
	data := EncodeSnapshotMarker(commits)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not write snapshot marker")
	}
	if err := os.Rename(tmp, path); err != nil {
		return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not install snapshot marker")
	}
	return nil
}

// EncodeSnapshotMarker renders commits into the current wire format.
func EncodeSnapshotMarker(commits model.ParentCommits) []byte {
	size := snapshotLenOneParent
	if commits.Parent2 != nil {
		size = snapshotLenTwoParents
	}
	buf := make([]byte, size)
	copy(buf[0:4], snapshotMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], snapshotVersion)
	copy(buf[8:28], commits.Parent1.Bytes())
	if commits.Parent2 != nil {
		copy(buf[28:48], commits.Parent2.Bytes())
	}
	return buf
}
