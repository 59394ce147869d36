package run

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"go.uber.org/zap"
)

// Runner invokes an external command and returns its stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as local subprocesses
type ExecRunner struct {
	// Dir is the working directory, empty for the current one
	Dir string
}

var _ Runner = (*ExecRunner)(nil)

// CommandError is a failed command with its captured stderr
type CommandError struct {
	Command string
	Stderr  []byte
	Err     error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(string(e.Stderr))
	if i := strings.LastIndexByte(msg, '\n'); i != -1 {
		msg = msg[i+1:]
	}
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine quotes name and args for display
func CommandLine(name string, args ...string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(name))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := CommandLine(name, args...)
	zap.L().Info("run", zap.String("cmd", line), zap.String("dir", r.Dir))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var outbuf, errbuf bytes.Buffer
	cmd.Stdout = &outbuf
	cmd.Stderr = &errbuf

	runErr := cmd.Run()
	if runErr != nil {
		zap.L().Error(name,
			zap.String("cmd", line),
			zap.ByteString("stderr", errbuf.Bytes()),
			zap.ByteString("stdout", outbuf.Bytes()),
			zap.Error(runErr),
		)
		return outbuf.Bytes(), &CommandError{Command: line, Stderr: errbuf.Bytes(), Err: runErr}
	}

	zap.L().Debug("done", zap.String("cmd", line), zap.Int("stdout", outbuf.Len()))
	return outbuf.Bytes(), nil
}
