package httpupload

import (
	"io"

	"github.com/kirillkom/docstream/internal/core/ports"
)

// progressReader reports cumulative bytes read against an expected total.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    ports.ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ports.ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}
