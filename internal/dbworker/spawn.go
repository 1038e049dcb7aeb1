package dbworker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/canonical/sqliteweb/internal/coordinator"
	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
)

// processHandle is a coordinator.ChildHandle backed by a real re-exec'd OS
// process, grounded on lxd/container_lxc.go's forkstart pattern: re-invoke
// the running executable (os.Executable(), mirroring state.OS.ExecPath)
// with a hidden flag selecting DB-only mode, rather than RunCommand's
// buffer-and-wait helper, since the child here is long-lived and streamed.
type processHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func (h *processHandle) Send(req messages.DbRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("dbworker: encode request: %w", err)
	}

	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("dbworker: child already closed")
	}

	_, err = h.stdin.Write(data)
	return err
}

func (h *processHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	_ = h.stdin.Close()

	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}

	return h.cmd.Wait()
}

// Spawn is a coordinator.ChildSpawner that launches a DB-worker child as a
// genuine OS process: the same binary, re-invoked with --db-only and
// --db-name (cmd/sqliteworkerd wires those flags to RunChild). It is the
// spawner cmd/sqliteworkerd passes to coordinator.New when not itself
// running in DB-only mode.
func Spawn(ctx context.Context, dbName string) (coordinator.ChildHandle, <-chan messages.DbReply, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, nil, fmt.Errorf("dbworker: resolve executable path: %w", err)
	}

	cmd := exec.CommandContext(ctx, exePath, "--db-only", "--db-name", dbName)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("dbworker: stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("dbworker: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("dbworker: start child: %w", err)
	}

	replies := make(chan messages.DbReply)
	go readReplies(stdout, replies)

	return &processHandle{cmd: cmd, stdin: stdin}, replies, nil
}

func readReplies(stdout io.Reader, out chan<- messages.DbReply) {
	defer close(out)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var reply messages.DbReply
		if err := json.Unmarshal(line, &reply); err != nil {
			logger.Warn("coordinator dropping malformed DB worker reply", logger.Ctx{"err": err})
			continue
		}

		out <- reply
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("coordinator DB worker reply stream ended with error", logger.Ctx{"err": err})
	}
}
