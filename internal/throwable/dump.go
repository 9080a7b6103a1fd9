package throwable

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// DumpOptions controls WriteDump.
type DumpOptions struct {
	// Color enables ANSI colors regardless of the terminal.
	Color bool
	// SkipCalculate renders the slots as they are.
	SkipCalculate bool
}

type palette struct {
	header, frame, exact, guessed, missing, muted *color.Color
}

func newPalette(on bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		header:  mk(color.FgRed, color.Bold),
		frame:   mk(color.Reset),
		exact:   mk(color.FgGreen),
		guessed: mk(color.FgYellow),
		missing: mk(color.FgHiBlack),
		muted:   mk(color.FgHiBlack, color.Italic),
	}
}

// FullDump calculates p and renders the whole tree without color.
func (c *Calculator) FullDump(p *Proxy) string {
	var sb strings.Builder
	_ = c.WriteDump(&sb, p, DumpOptions{})
	return sb.String()
}

// WriteDump renders p, its suppressed proxies and its cause chain to w.
// Panics while rendering are reported as errors.
func (c *Calculator) WriteDump(w io.Writer, p *Proxy, opts DumpOptions) (err error) {
	if p == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dump: panic: %v", r)
		}
	}()
	if !opts.SkipCalculate {
		c.Calculate(p)
	}
	d := &dumper{w: w, pal: newPalette(opts.Color)}
	d.proxy(p, "", "")
	return d.err
}

type dumper struct {
	w   io.Writer
	pal palette
	err error
}

func (d *dumper) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func (d *dumper) proxy(p *Proxy, indent, label string) {
	head := p.ClassName
	if p.Message != "" {
		head += ": " + p.Message
	}
	d.printf("%s%s%s\n", indent, label, d.pal.header.Sprint(head))

	common := min(max(p.CommonFrames, 0), len(p.frames))
	for _, f := range p.frames[:len(p.frames)-common] {
		d.printf("%s\tat %s%s\n", indent, d.pal.frame.Sprint(f.Element.String()), d.annotation(f))
	}
	if common > 0 {
		d.printf("%s\t%s\n", indent, d.pal.muted.Sprintf("... %d common frames omitted", common))
	}
	for _, s := range p.suppressed {
		d.proxy(s, indent+"\t", "Suppressed: ")
	}
	if p.cause != nil {
		d.proxy(p.cause, indent, "Caused by: ")
	}
}

func (d *dumper) annotation(f *Frame) string {
	data := f.PackagingData()
	if data == nil {
		return ""
	}
	switch {
	case !data.IsAvailable():
		return " " + d.pal.missing.Sprint(data.String())
	case data.Exact:
		return " " + d.pal.exact.Sprint(data.String())
	default:
		return " " + d.pal.guessed.Sprint(data.String())
	}
}
