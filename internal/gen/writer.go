package gen

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/amplike/internal/domain/model"
)

// countingWriter counts the bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Write formats evs one record per line as "s t u p". Floats use the
// shortest representation that parses back to the same value.
func Write(ctx context.Context, w io.Writer, evs []model.Event) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	buf := make([]byte, 0, 128)

	for i, ev := range evs {
		if i%chunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return cw.n, err
			}
		}
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, ev.S, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, ev.T, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, ev.U, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, ev.P, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return cw.n, fmt.Errorf("write record %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("flush events: %w", err)
	}
	return cw.n, nil
}
