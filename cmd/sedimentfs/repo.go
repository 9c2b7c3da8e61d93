package main

import (
	"os"
	"time"

	"golang.org/x/xerrors"

	sediment "github.com/sedimentfs/sedimentfs"
	"github.com/sedimentfs/sedimentfs/internal/catalog"
	"github.com/sedimentfs/sedimentfs/internal/engine"
	"github.com/sedimentfs/sedimentfs/internal/manifest"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

const defaultChunkSize = 4 << 20 // 4 MiB, matching the chunker's default target size

// openRepo opens (creating if necessary) the catalog, store and manifest
// backing work, and starts an engine over them. The returned shutdown
// func performs a final commit and closes the catalog handle; callers
// must call it before the process exits.
func openRepo(work sediment.WorkDir, autoCommit time.Duration) (*engine.Engine, func() error, error) {
	if err := os.MkdirAll(work.ScratchDir(), 0o755); err != nil {
		return nil, nil, xerrors.Errorf("creating scratch dir: %w", err)
	}
	if err := os.MkdirAll(work.DataDir(), 0o755); err != nil {
		return nil, nil, xerrors.Errorf("creating data dir: %w", err)
	}

	c, err := catalog.Open(work.CatalogPath())
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewDisk(work.Root, defaultChunkSize)
	if err != nil {
		c.Close()
		return nil, nil, err
	}

	mf := &manifest.Manifest{}
	if raw, err := s.ReadSpecialFile(work.ManifestPath()); err == nil {
		decoded, err := manifest.Decode(raw)
		if err != nil {
			c.Close()
			return nil, nil, xerrors.Errorf("decoding existing manifest: %w", err)
		}
		*mf = decoded
	}

	eng, err := engine.New(engine.Options{
		Catalog:            c,
		Store:              s,
		Manifest:           mf,
		CatalogPath:        work.CatalogPath(),
		ManifestPath:       work.ManifestPath(),
		ReflogPath:         work.ReflogPath(),
		AutoCommitInterval: autoCommit,
	})
	if err != nil {
		c.Close()
		return nil, nil, err
	}

	shutdown := func() error {
		_, err := eng.Stop()
		closeErr := c.Close()
		if err != nil {
			return err
		}
		return closeErr
	}
	return eng, shutdown, nil
}
