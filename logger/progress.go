package logger

import (
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/chronograph/errors"
)

// ProgressTimeLayout is the clock format used in cycle progress lines.
const ProgressTimeLayout = "15-04-05.000000"

var progressPool = buffer.NewPool()

// progressEncoder renders the operator-facing cycle log:
//
//	(PID-4242)[13-04-35.120931] Running job backup.
//
// Structured fields are dropped; the diagnostic logger carries those.
type progressEncoder struct {
	*zapcore.MapObjectEncoder
	pid string
}

func newProgressEncoder(pid int) *progressEncoder {
	return &progressEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		pid:              strconv.Itoa(pid),
	}
}

func (enc *progressEncoder) Clone() zapcore.Encoder {
	return &progressEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder(), pid: enc.pid}
}

func (enc *progressEncoder) EncodeEntry(ent zapcore.Entry, _ []zapcore.Field) (*buffer.Buffer, error) {
	line := progressPool.Get()
	line.AppendString("(PID-")
	line.AppendString(enc.pid)
	line.AppendString(")[")
	line.AppendString(ent.Time.Format(ProgressTimeLayout))
	line.AppendString("] ")
	line.AppendString(ent.Message)
	line.AppendByte('\n')
	return line, nil
}

// ProgressLogger writes cycle progress lines to the console and, when
// configured, appends them to a log file.
type ProgressLogger struct {
	*zap.SugaredLogger
	file *os.File
}

// NewProgressLogger builds the cycle progress logger. When path is set the
// file is opened for appending; if that fails the logger still writes to
// console and the open error is returned next to it so the caller can
// report it once.
func NewProgressLogger(console io.Writer, path string) (*ProgressLogger, error) {
	enc := newProgressEncoder(os.Getpid())
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(console), zapcore.DebugLevel),
	}

	var file *os.File
	var openErr error
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			openErr = errors.Wrapf(err, "open log file %s", path)
		} else {
			file = f
			cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), zapcore.DebugLevel))
		}
	}

	p := &ProgressLogger{
		SugaredLogger: zap.New(zapcore.NewTee(cores...)).Sugar(),
		file:          file,
	}
	return p, openErr
}

// HasFile reports whether progress lines are also going to a log file.
func (p *ProgressLogger) HasFile() bool {
	return p.file != nil
}

// Close flushes and closes the log file, if any.
func (p *ProgressLogger) Close() error {
	p.Sync()
	if p.file == nil {
		return nil
	}
	if err := p.file.Close(); err != nil {
		return errors.Wrap(err, "close log file")
	}
	return nil
}

// NopProgressLogger discards progress lines.
func NopProgressLogger() *ProgressLogger {
	return &ProgressLogger{SugaredLogger: zap.NewNop().Sugar()}
}
