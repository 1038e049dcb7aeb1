package dbworker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/canonical/sqliteweb/internal/engine"
	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
	"github.com/canonical/sqliteweb/internal/params"
	"github.com/canonical/sqliteweb/internal/sanitize"
)

// ChildConfig carries what the child process needs from its parent
// coordinator at spawn time (spec.md §4.3: "packaging the same worker
// program with a flag ... and the injected dbName/timeouts").
type ChildConfig struct {
	DBName  string
	DataDir string
}

// RunChild is the DB-worker child process's entire lifecycle (spec.md
// §4.5): initialize the engine against cfg, emit WorkerReady (or
// WorkerError and exit without entering service), then serve ExecuteQuery
// requests read as newline-delimited JSON from stdin, replying on stdout.
// It returns when stdin is closed (the parent coordinator terminated the
// child) or ctx is cancelled.
func RunChild(ctx context.Context, cfg ChildConfig, stdin io.Reader, stdout io.Writer) error {
	var writeMu sync.Mutex
	writeLine := func(reply messages.DbReply) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		data, err := json.Marshal(reply)
		if err != nil {
			return err
		}

		data = append(data, '\n')
		_, err = stdout.Write(data)
		return err
	}

	eng := engine.NewSQLite()
	path := sanitize.Filename(cfg.DBName)
	if cfg.DataDir != "" {
		path = cfg.DataDir + "/" + path
	}

	if err := eng.Initialize(ctx, path); err != nil {
		logger.Error("DB worker failed to initialize", logger.Ctx{"db": cfg.DBName, "err": err})
		return writeLine(messages.DbWorkerError(err.Error()))
	}

	defer eng.Close()

	worker := New(eng, func(requestID uint32, result string, err error) {
		var reply messages.DbReply
		if err != nil {
			reply = messages.DbQueryResultErr(requestID, err.Error())
		} else {
			reply = messages.DbQueryResultOK(requestID, result)
		}

		if werr := writeLine(reply); werr != nil {
			logger.Error("DB worker failed to write reply", logger.Ctx{"err": werr})
		}
	})

	if err := writeLine(messages.DbWorkerReady()); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req messages.DbRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("DB worker dropping malformed request", logger.Ctx{"err": err})
			continue
		}

		values, err := params.Denormalize(req.Params)
		if err != nil {
			if werr := writeLine(messages.DbQueryResultErr(req.RequestID, fmt.Sprintf("invalid params: %v", err))); werr != nil {
				return werr
			}

			continue
		}

		worker.Enqueue(Job{RequestID: req.RequestID, SQL: req.SQL, Params: values})
	}

	return scanner.Err()
}
