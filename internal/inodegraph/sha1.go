package inodegraph

import (
	"crypto/sha1"
	"io"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/overlay"
)

const sha1XattrName = "user.sha1"

// GetSha1 returns a file's content digest: the backing Tree/Blob's
// recorded hash when the file is
// still Loaded, or a lazily computed and cached digest of the overlay
// body once it is Materialized.
func (g *Graph) GetSha1(number inum.Number) (objhash.Hash, error) {
	node, err := g.requireFile(number)
	if err != nil {
		return objhash.Hash{}, err
	}

	node.RLock()
	fs := node.File()
	if !fs.Materialized {
		hash := fs.BackingHash
		node.RUnlock()
		return g.Store.GetSha1ForBlob(hash)
	}
	if fs.Sha1Valid {
		cached := fs.CachedSha1
		node.RUnlock()
		return cached, nil
	}
	node.RUnlock()

	node.Lock()
	defer node.Unlock()
	fs = node.File()
	if fs.Sha1Valid {
		return fs.CachedSha1, nil
	}

	digest, err := hashOverlayBody(fs.OverlayFile)
	if err != nil {
		return objhash.Hash{}, err
	}
	fs.CachedSha1 = digest
	fs.Sha1Valid = true
	if err := g.Overlay.SetXattr(number, sha1XattrName, digest.Bytes()); err != nil {
		return objhash.Hash{}, err
	}
	return digest, nil
}

// hashOverlayBody streams f's body and returns its SHA-1. File offsets are
// body-relative (the same offsets Read and Write use), so the header is
// never part of the digest.
func hashOverlayBody(f overlay.File) (objhash.Hash, error) {
	size, err := f.Size()
	if err != nil {
		return objhash.Hash{}, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not stat overlay file body")
	}

	h := sha1.New()
	buf := make([]byte, 64*1024)
	off := int64(0)
	for off < size {
		n, err := f.ReadAt(buf, off)
		if n > 0 {
			h.Write(buf[:n])
			off += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return objhash.Hash{}, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not read overlay file body")
		}
	}
	return objhash.FromBytes(h.Sum(nil))
}
