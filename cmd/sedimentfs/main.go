// Command sedimentfs ingests a directory tree into a content-addressed
// repository, mounts it as a read-write FUSE filesystem, and reports on
// its status, mirroring the teacher's own verb-dispatch CLI shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	sediment "github.com/sedimentfs/sedimentfs"
)

var debug = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")

func funcmain() error {
	flag.Parse()

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"ingest": {cmdIngest},
		"mount":  {cmdMount},
		"status": {cmdStatus},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "syntax: sedimentfs <command> [options]")
		fmt.Fprintln(os.Stderr, "commands: ingest, mount, status")
		os.Exit(2)
	}
	verb, args := args[0], args[1:]
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintln(os.Stderr, "syntax: sedimentfs <command> [options]")
		os.Exit(2)
	}

	ctx, canc := sediment.InterruptibleContext()
	defer canc()
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return sediment.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
