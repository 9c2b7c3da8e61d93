package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/engine"
)

// controlServer accepts newline-terminated single-word commands over a
// unix domain socket and replies with a single text line, per the
// control protocol's "delivered over a local stream socket" design: a
// minimal command set (ping, status, commit) does not warrant pulling
// in a generated RPC stack for a data model that has nothing in common
// with the teacher's own package-management service definition.
type controlServer struct {
	ln  net.Listener
	eng *engine.Engine
}

func startControlServer(path string, eng *engine.Engine) (*controlServer, error) {
	os.Remove(path) // stale socket from an unclean shutdown
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, xerrors.Errorf("control socket %s: %w", path, err)
	}
	cs := &controlServer{ln: ln, eng: eng}
	go cs.serve()
	return cs, nil
}

func (cs *controlServer) Close() error {
	return cs.ln.Close()
}

func (cs *controlServer) serve() {
	for {
		conn, err := cs.ln.Accept()
		if err != nil {
			return
		}
		go cs.handle(conn)
	}
}

func (cs *controlServer) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		reply := cs.dispatch(line)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
	}
}

func (cs *controlServer) dispatch(cmd string) string {
	switch cmd {
	case "ping":
		cs.eng.Ping()
		return "pong"
	case "status":
		cs.eng.Ping()
		return "mounted"
	case "commit":
		summary, err := cs.eng.Commit()
		if err != nil {
			return "error: " + err.Error()
		}
		if summary.Empty {
			return "noop"
		}
		return fmt.Sprintf("ok root=%s", summary.RootHash)
	default:
		log.Printf("control: unknown command %q", cmd)
		return "error: unknown command"
	}
}
