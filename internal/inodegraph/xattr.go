package inodegraph

import (
	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
)

// GetXattr surfaces the synthetic user.sha1 attribute on regular files and
// otherwise passes through to the overlay backend unchanged.
func (g *Graph) GetXattr(number inum.Number, name string) ([]byte, error) {
	if name == sha1XattrName {
		hash, err := g.GetSha1(number)
		if err != nil {
			return nil, err
		}
		return hash.Bytes(), nil
	}
	if _, err := g.requireFile(number); err != nil {
		return nil, err
	}
	return g.Overlay.GetXattr(number, name)
}

// SetXattr rejects writes to the synthetic user.sha1 attribute (its value
// is computed from the file body by GetSha1, which caches it in the
// overlay) and otherwise passes through. A set on a
// non-materialized file materializes it first, consistent with every
// other mutation that triggers materialization.
func (g *Graph) SetXattr(number inum.Number, name string, value []byte) error {
	if name == sha1XattrName {
		return fserrors.New(fserrors.NotImplemented, "user.sha1 is computed, not settable")
	}
	node, err := g.requireFile(number)
	if err != nil {
		return err
	}
	node.Lock()
	if !node.File().Materialized {
		if err := g.materializeFile(number, node); err != nil {
			node.Unlock()
			return err
		}
	}
	node.Unlock()
	return g.Overlay.SetXattr(number, name, value)
}

// ListXattr reports the overlay backend's stored attribute names plus the
// synthetic user.sha1 entry every regular file carries.
func (g *Graph) ListXattr(number inum.Number) ([]string, error) {
	node, err := g.requireFile(number)
	if err != nil {
		return nil, err
	}
	node.RLock()
	materialized := node.File().Materialized
	node.RUnlock()

	names := []string{sha1XattrName}
	if materialized {
		stored, err := g.Overlay.ListXattr(number)
		if err != nil {
			return nil, err
		}
		names = append(names, stored...)
	}
	return names, nil
}

// RemoveXattr refuses to remove the synthetic user.sha1 attribute and
// otherwise passes through.
func (g *Graph) RemoveXattr(number inum.Number, name string) error {
	if name == sha1XattrName {
		return fserrors.New(fserrors.NotImplemented, "user.sha1 cannot be removed")
	}
	if _, err := g.requireFile(number); err != nil {
		return err
	}
	return g.Overlay.RemoveXattr(number, name)
}
