package fetch

import (
	"fmt"
	"io"
	"strings"
)

// progressMeter renders an in-place bar for one streaming download. A zero
// total disables rendering (length unknown).
type progressMeter struct {
	out     io.Writer
	label   string
	total   int64
	read    int64
	lastPct int
}

func newProgressMeter(out io.Writer, label string, total int64) *progressMeter {
	if len(label) > 48 {
		label = "..." + label[len(label)-45:]
	}
	return &progressMeter{out: out, label: label, total: total, lastPct: -1}
}

func (p *progressMeter) advance(n int) {
	p.read += int64(n)
	if p.out == nil || p.total <= 0 {
		return
	}
	pct := int(p.read * 100 / p.total)
	if pct == p.lastPct {
		return
	}
	p.lastPct = pct

	width := 30
	filled := pct * width / 100
	fmt.Fprintf(p.out, "\r%s [%s%s] %3d%%", p.label,
		strings.Repeat("=", filled), strings.Repeat(" ", width-filled), pct)
}

func (p *progressMeter) finish() {
	if p.out != nil && p.total > 0 {
		fmt.Fprintln(p.out)
	}
}
