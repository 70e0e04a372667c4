package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
)

// Pipe pumps one child output stream line by line until end-of-stream.
// Each line goes to console prefixed with "[name:kind]"; when sink is
// non-nil the raw line is appended there too, one Write per line so the
// file is current even if the child (or this process) crashes next.
//
// Undecodable bytes are replaced, never fatal. A read error is logged and
// ends only this pump; siblings and the child itself are unaffected.
func Pipe(r io.Reader, prefix string, console io.Writer, sink io.Writer, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			text := strings.ToValidUTF8(strings.TrimRight(line, "\r\n"), "�")
			_, _ = fmt.Fprintf(console, "[%s] %s\n", prefix, text)
			if sink != nil {
				if _, werr := io.WriteString(sink, text+"\n"); werr != nil {
					logger.Error("log sink write failed", "stream", prefix, "error", werr)
					sink = nil // keep the console pump alive
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
				// Closed read ends mean the supervisor cancelled us; anything
				// else is a genuine stream failure, contained here.
				logger.Error("stream read failed", "stream", prefix, "error", err)
			}
			return
		}
	}
}
