package epi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/kurobako-go/kurobako/pkg/kerrors"
)

// channel is the bidirectional NDJSON link to a child process's
// stdin/stdout, per §4.2. The sender and receiver are each serialized by
// their own lock (§5: "holding both is forbidden"); callers coordinate
// call/reply pairing themselves (the host layer), since the channel has no
// concept of request/response — it only frames lines.
type channel struct {
	sendMu sync.Mutex
	w      io.Writer

	recvMu sync.Mutex
	r      *bufio.Reader

	// stderr receives lines from the child's stdout that are not
	// protocol-framed — its own log output sharing the stream (§4.2).
	stderr *slog.Logger
}

func newChannel(w io.Writer, r io.Reader, stderr *slog.Logger) *channel {
	return &channel{w: w, r: bufio.NewReader(r), stderr: stderr}
}

// send serializes msg, writes it marker-prefixed on its own line, and
// flushes — cast messages are fire-and-forget from the caller's
// perspective, so send never waits for anything beyond the write itself.
func (c *channel) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return kerrors.Wrap(kerrors.ProtocolError, "marshal message", err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := io.WriteString(c.w, marker); err != nil {
		return kerrors.Wrap(kerrors.IoError, "write marker", err)
	}
	if _, err := c.w.Write(data); err != nil {
		return kerrors.Wrap(kerrors.IoError, "write message body", err)
	}
	if _, err := io.WriteString(c.w, "\n"); err != nil {
		return kerrors.Wrap(kerrors.IoError, "write newline", err)
	}
	if f, ok := c.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return kerrors.Wrap(kerrors.IoError, "flush", err)
		}
	}
	return nil
}

// recv reads lines until a marker-prefixed one arrives, forwarding every
// other line to stderr as the child's own log output, and returns the raw
// JSON body of that line for the caller to dispatch by type.
func (c *channel) recv() (json.RawMessage, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if line == "" {
				if err == io.EOF {
					return nil, kerrors.Wrap(kerrors.IoError, "channel closed", errChannelClosed)
				}
				return nil, kerrors.Wrap(kerrors.IoError, "read line", err)
			}
			// Last line before EOF with no trailing newline: process it,
			// then the next recv call will see EOF directly.
		}
		line = strings.TrimRight(line, "\n")

		if !strings.HasPrefix(line, marker) {
			if c.stderr != nil && line != "" {
				c.stderr.Info(line)
			}
			continue
		}

		body := strings.TrimPrefix(line, marker)
		return json.RawMessage(body), nil
	}
}

// typeOf peeks the type discriminant of a raw protocol message.
func typeOf(raw json.RawMessage) (MessageType, error) {
	var env struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", kerrors.Wrapf(kerrors.ProtocolError, err, "malformed protocol message: %s", raw)
	}
	return env.Type, nil
}

// decode unmarshals raw into out, wrapping failures as ProtocolError.
func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return kerrors.Wrapf(kerrors.ProtocolError, err, "malformed protocol message: %s", raw)
	}
	return nil
}

var errChannelClosed = fmt.Errorf("channel closed")

// ChannelClosed reports whether err indicates the channel was closed
// (typically the child exited / closed its stdout).
func ChannelClosed(err error) bool {
	return kerrors.Is(err, kerrors.IoError) && strings.Contains(err.Error(), errChannelClosed.Error())
}
