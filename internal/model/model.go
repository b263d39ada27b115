// Package model defines the content-addressed object model the engine
// reads from: immutable Trees and Blobs, and the parent-commit record a
// mount's snapshot marker points at.
package model

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/pathname"
)

// Kind is the type of content a TreeEntry names.
type Kind uint8

const (
	KindRegular Kind = iota
	KindExecutable
	KindSymlink
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindExecutable:
		return "executable"
	case KindSymlink:
		return "symlink"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// TreeEntry is one immutable named edge from a Tree to its child's content
// hash. The containing Tree is responsible for keeping entries unique by
// name and sorted.
type TreeEntry struct {
	Name          pathname.Component
	TargetHash    objhash.Hash
	Kind          Kind
	OwnerPermBits uint8
}

// Tree is an immutable, content-addressed directory listing. SelfHash is
// derived from the serialized form of Entries, never set independently.
type Tree struct {
	SelfHash objhash.Hash
	Entries  []TreeEntry
}

// NewTree sorts entries by name, validates uniqueness, and computes SelfHash.
func NewTree(entries []TreeEntry) (*Tree, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, fserrors.Newf(fserrors.Exists, "duplicate tree entry name %q", sorted[i].Name)
		}
	}
	body := serializeEntries(sorted)
	return &Tree{SelfHash: objhash.Sum(body), Entries: sorted}, nil
}

// Lookup finds an entry by name, which is an O(log n) binary search since
// Entries is always kept sorted.
func (t *Tree) Lookup(name pathname.Component) (TreeEntry, bool) {
	idx := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if idx < len(t.Entries) && t.Entries[idx].Name == name {
		return t.Entries[idx], true
	}
	return TreeEntry{}, false
}

// Serialize renders the tree to its canonical on-disk byte form, the same
// bytes SelfHash was computed from.
func (t *Tree) Serialize() []byte {
	return serializeEntries(t.Entries)
}

func serializeEntries(entries []TreeEntry) []byte {
	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	for _, e := range entries {
		name := []byte(e.Name)
		n := binary.PutUvarint(lenBuf[:], uint64(len(name)))
		buf.Write(lenBuf[:n])
		buf.Write(name)
		buf.Write(e.TargetHash.Bytes())
		buf.WriteByte(byte(e.Kind))
		buf.WriteByte(e.OwnerPermBits)
	}
	return buf.Bytes()
}

// ParseTree reconstructs a Tree from bytes previously produced by Serialize,
// verifying the content hash matches selfHash (the hash the caller looked
// the tree up by).
func ParseTree(selfHash objhash.Hash, data []byte) (*Tree, error) {
	if !objhash.Sum(data).IsZero() && objhash.Sum(data) != selfHash {
		return nil, fserrors.New(fserrors.CorruptSnapshot, "tree content hash does not match requested hash")
	}
	r := bytes.NewReader(data)
	var entries []TreeEntry
	for r.Len() > 0 {
		nameLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "truncated tree entry name length")
		}
		nameBuf := make([]byte, nameLen)
		if _, err := r.Read(nameBuf); err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "truncated tree entry name")
		}
		name, err := pathname.NewComponent(string(nameBuf))
		if err != nil {
			return nil, err
		}
		var hashBuf [objhash.Size]byte
		if _, err := r.Read(hashBuf[:]); err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "truncated tree entry hash")
		}
		hash, err := objhash.FromBytes(hashBuf[:])
		if err != nil {
			return nil, err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "truncated tree entry kind")
		}
		permByte, err := r.ReadByte()
		if err != nil {
			return nil, fserrors.Wrap(fserrors.CorruptSnapshot, err, "truncated tree entry perm bits")
		}
		entries = append(entries, TreeEntry{
			Name:          name,
			TargetHash:    hash,
			Kind:          Kind(kindByte),
			OwnerPermBits: permByte,
		})
	}
	return &Tree{SelfHash: selfHash, Entries: entries}, nil
}

// Blob is an immutable byte sequence whose SelfHash is the SHA-1 of Bytes.
// This is distinct from the TreeEntry.TargetHash the containing tree uses
// to reference it, which may be an opaque backend id.
type Blob struct {
	SelfHash objhash.Hash
	Bytes    []byte
}

// NewBlob computes SelfHash from bytes.
func NewBlob(data []byte) *Blob {
	return &Blob{SelfHash: objhash.Sum(data), Bytes: data}
}

// ParentCommits identifies the one or two parent revisions a mount's
// working state is interpreted against.
type ParentCommits struct {
	Parent1 objhash.Hash
	Parent2 *objhash.Hash
}

// Equal compares two ParentCommits component-wise.
func (p ParentCommits) Equal(other ParentCommits) bool {
	if p.Parent1 != other.Parent1 {
		return false
	}
	if (p.Parent2 == nil) != (other.Parent2 == nil) {
		return false
	}
	if p.Parent2 != nil && *p.Parent2 != *other.Parent2 {
		return false
	}
	return true
}
