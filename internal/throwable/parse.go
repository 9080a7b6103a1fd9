package throwable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoTraceback is returned by Parse when the input holds no goroutine.
var ErrNoTraceback = errors.New("no goroutine traceback found")

var (
	goroutineRe = regexp.MustCompile(`^goroutine (\d+)(?: [^\[]*)?\[([^\]]*)\]:$`)
	fileLineRe  = regexp.MustCompile(`^\s+(.+?):(\d+)(?: \+0x[0-9a-f]+)?$`)
	createdRe   = regexp.MustCompile(`^created by (.+?)(?: in goroutine \d+)?$`)
)

// Parse reads a Go panic or goroutine dump and returns one proxy per
// goroutine, in input order. The panic message, if present, becomes the
// first proxy's message.
func Parse(r io.Reader, opts ...Option) ([]*Proxy, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		out     []*Proxy
		cur     *Proxy
		pending string // function awaiting its file line
		panicky string
		lineNo  int
	)
	flush := func() {
		if cur != nil {
			out = append(out, cur)
		}
		cur, pending = nil, ""
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		if m := goroutineRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Proxy{ClassName: "goroutine " + m[1] + " [" + m[2] + "]", loader: o.loader}
			if len(out) == 0 {
				cur.Message = panicky
			}
			continue
		}
		if cur == nil {
			if panicky == "" {
				panicky = panicMessage(line)
			}
			continue
		}
		if line == "" {
			flush()
			continue
		}

		if m := fileLineRe.FindStringSubmatch(line); m != nil && pending != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad line number %q: %w", lineNo, m[2], err)
			}
			cur.frames = append(cur.frames, NewFrame(Element{Function: pending, File: m[1], Line: n}))
			pending = ""
			continue
		}
		if strings.HasPrefix(line, "...") {
			// "...additional frames elided..."
			continue
		}
		if m := createdRe.FindStringSubmatch(line); m != nil {
			pending = m[1]
			continue
		}
		pending = functionName(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read traceback: %w", err)
	}
	flush()

	if len(out) == 0 {
		return nil, ErrNoTraceback
	}
	if o.calc != nil {
		for _, p := range out {
			p.calc = o.calc
		}
	}
	return out, nil
}

func panicMessage(line string) string {
	for _, prefix := range []string{"panic: ", "fatal error: ", "fatal: "} {
		if msg, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSuffix(msg, " [recovered]")
		}
	}
	return ""
}

// functionName strips the argument list from a traceback call line.
func functionName(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ")") {
		if i := strings.LastIndexByte(line, '('); i > 0 {
			return line[:i]
		}
	}
	return line
}
