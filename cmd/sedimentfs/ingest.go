package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	sediment "github.com/sedimentfs/sedimentfs"
	"github.com/sedimentfs/sedimentfs/internal/engine"
	"github.com/sedimentfs/sedimentfs/internal/inode"
)

const ingestHelp = `sedimentfs ingest [-flags] <source-dir>

Ingest a host directory tree into a sedimentfs repository, committing
once the whole tree has been written.
`

const writeChunkSize = 1 << 20 // 1 MiB per WriteData request

func cmdIngest(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("ingest", flag.ExitOnError)
	var (
		repo = fset.String("repo", "", "path to the repository work directory (created if absent)")
	)
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, ingestHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	if fset.NArg() != 1 || *repo == "" {
		fset.Usage()
		return xerrors.New("syntax: ingest -repo=<dir> <source-dir>")
	}
	source := fset.Arg(0)

	work := sediment.WorkDir{Root: *repo}
	eng, shutdown, err := openRepo(work, 0)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { runErr <- eng.Run(runCtx) }()

	if err := ingestTree(eng, source); err != nil {
		cancel()
		<-runErr
		return err
	}
	summary, err := eng.Commit()
	if err != nil {
		cancel()
		<-runErr
		return err
	}
	log.Printf("ingest: committed root %s (%d files flushed, %d dirs written)",
		summary.RootHash, summary.FilesFlushed, summary.DirsWritten)

	if err := shutdown(); err != nil {
		return err
	}
	cancel()
	return <-runErr
}

// ingestTree walks source and recreates it under the repository's root.
// WalkDir visits each directory before its contents, so every entry's
// parent index already exists when the entry is created.
func ingestTree(eng *engine.Engine, source string) error {
	indices := map[string]uint64{".": inode.RootIndex}

	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		parentRel := filepath.Dir(rel)
		parent, ok := indices[parentRel]
		if !ok {
			return xerrors.Errorf("ingest: parent of %s not yet created", rel)
		}
		name := filepath.Base(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			attrs, err := eng.CreateDir(parent, name, uint16(info.Mode().Perm()), 0, 0)
			if err != nil {
				return xerrors.Errorf("CreateDir(%s): %w", rel, err)
			}
			indices[rel] = attrs.Index
			return nil
		}
		if !d.Type().IsRegular() {
			log.Printf("ingest: skipping %s: not a regular file or directory", rel)
			return nil
		}

		attrs, err := eng.CreateFile(parent, name, uint16(info.Mode().Perm()), 0, 0)
		if err != nil {
			return xerrors.Errorf("CreateFile(%s): %w", rel, err)
		}
		if err := eng.OpenFile(attrs.Index, true); err != nil {
			return xerrors.Errorf("OpenFile(%s): %w", rel, err)
		}
		defer eng.ReleaseFile(attrs.Index)
		if err := copyFileData(eng, attrs.Index, path); err != nil {
			return xerrors.Errorf("writing %s: %w", rel, err)
		}
		return nil
	})
}

func copyFileData(eng *engine.Engine, index uint64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, writeChunkSize)
	var offset uint64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := eng.WriteData(index, offset, buf[:n]); werr != nil {
				return werr
			}
			offset += uint64(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
