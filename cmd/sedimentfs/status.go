package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	sediment "github.com/sedimentfs/sedimentfs"
	"github.com/sedimentfs/sedimentfs/internal/manifest"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

const statusHelp = `sedimentfs status [-flags] -repo=<dir>

Print the current root hash, commit timestamp, and reflog depth for a
repository, without mounting it.
`

// ansi color codes, used only when stdout is a terminal.
const (
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

func cmdStatus(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("status", flag.ExitOnError)
	var repo = fset.String("repo", "", "path to the repository work directory")
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, statusHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	if *repo == "" {
		fset.Usage()
		return fmt.Errorf("syntax: status -repo=<dir>")
	}

	work := sediment.WorkDir{Root: *repo}
	s, err := store.NewDisk(work.Root, defaultChunkSize)
	if err != nil {
		return err
	}

	raw, err := s.ReadSpecialFile(work.ManifestPath())
	if err != nil {
		fmt.Println("repository has no commits yet")
		return nil
	}
	mf, err := manifest.Decode(raw)
	if err != nil {
		return err
	}

	reflog, err := manifest.ReadReflog(s, work.ReflogPath())
	if err != nil {
		return err
	}

	label := func(s string) string {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			return ansiGreen + s + ansiReset
		}
		return s
	}

	fmt.Printf("%s %s\n", label("root:"), mf.RootHash)
	fmt.Printf("%s %s\n", label("committed:"), mf.Timestamp)
	if mf.PreviousRootHash != nil {
		fmt.Printf("%s %s\n", label("previous:"), *mf.PreviousRootHash)
	}
	fmt.Printf("%s %d\n", label("reflog entries:"), len(reflog))
	return nil
}
