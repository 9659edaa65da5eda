package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/samvad-hq/webview-relay/pkg/commands"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// maxLineBytes bounds a single request line; relayed bodies travel inline.
const maxLineBytes = 32 << 20

type stdioRequest struct {
	ID   json.RawMessage `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args"`
}

// ServeStdio reads one JSON request per line from in and writes one reply
// per line to out. Requests run concurrently, so replies may arrive out of
// order and carry the request id. It returns after in is exhausted and all
// replies are written, or when ctx is cancelled.
func ServeStdio(ctx context.Context, reg commands.Registry, in io.Reader, out io.Writer, log Logger) error {
	log = ensureLogger(log)
	w := &replyWriter{enc: json.NewEncoder(out)}
	w.enc.SetEscapeHTML(false)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.InfoObj("stdio bridge stopped", "reason", ctx.Err().Error())
			return nil
		case line, ok := <-lines:
			if !ok {
				wg.Wait()
				if err := <-scanErr; err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				return nil
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var req stdioRequest
			if err := json.Unmarshal(line, &req); err != nil {
				w.write(log, commands.NewReply(nil, relay.InvalidInput("malformed request line: %v", err)))
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := reg.Invoke(ctx, req.Cmd, req.Args)
				reply := commands.NewReply(result, err)
				reply.ID = req.ID
				w.write(log, reply)
			}()
		}
	}
}

// replyWriter serializes replies so lines never interleave.
type replyWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *replyWriter) write(log Logger, reply commands.Reply) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(reply); err != nil {
		log.WarnObj("stdio reply write failed", "error", err.Error())
	}
}

