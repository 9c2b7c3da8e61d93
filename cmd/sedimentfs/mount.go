package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	sediment "github.com/sedimentfs/sedimentfs"
	"github.com/sedimentfs/sedimentfs/internal/fuseadapter"
)

const mountHelp = `sedimentfs mount [-flags] <mountpoint>

Mount a sedimentfs repository read-write at mountpoint. Runs until
interrupted (SIGINT/SIGTERM), committing periodically and once more on
the way out.
`

func cmdMount(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("mount", flag.ExitOnError)
	var (
		repo        = fset.String("repo", "", "path to the repository work directory")
		autoCommit  = fset.Duration("autocommit", 30*time.Second, "interval between automatic commits, 0 to disable")
		controlPath = fset.String("control", "", "path for the control socket (default: <repo>/scratch/control)")
	)
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, mountHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	if fset.NArg() != 1 || *repo == "" {
		fset.Usage()
		return xerrors.New("syntax: mount -repo=<dir> <mountpoint>")
	}
	mountpoint := fset.Arg(0)

	work := sediment.WorkDir{Root: *repo}
	eng, shutdown, err := openRepo(work, *autoCommit)
	if err != nil {
		return err
	}

	// The engine's own run loop lives on a context independent of the
	// interrupt signal: Stop (called from shutdown below) is the only
	// thing allowed to end it, so a SIGINT arriving while a request is
	// in flight still gets a clean final commit instead of racing a
	// context cancellation against the run loop's exit.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	var eg errgroup.Group
	eg.Go(func() error { return eng.Run(runCtx) })

	fs := fuseadapter.New(eng, uint32(os.Getuid()), uint32(os.Getgid()))
	server := fuseutil.NewFileSystemServer(fs)
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName: "sedimentfs",
		Options: map[string]string{
			"allow_other": "",
		},
	})
	if err != nil {
		return xerrors.Errorf("fuse.Mount: %w", err)
	}

	ctlPath := *controlPath
	if ctlPath == "" {
		ctlPath = work.ScratchDir() + "/control"
	}
	ctl, err := startControlServer(ctlPath, eng)
	if err != nil {
		return err
	}
	defer ctl.Close()

	go func() {
		<-ctx.Done()
		if err := fuse.Unmount(mountpoint); err != nil {
			log.Printf("fuse.Unmount: %v", err)
		}
	}()

	if err := mfs.Join(context.Background()); err != nil {
		log.Printf("mfs.Join: %v", err)
	}

	if err := shutdown(); err != nil {
		return err
	}
	cancelRun()
	return eg.Wait()
}
