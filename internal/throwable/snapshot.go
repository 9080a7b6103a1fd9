package throwable

import (
	"encoding/json"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"pkgtrace/internal/packaging"
)

// SnapshotFrame is the serializable form of a Frame.
type SnapshotFrame struct {
	Function string `json:"function" msgpack:"fn"`
	File     string `json:"file" msgpack:"file"`
	Line     int32  `json:"line" msgpack:"line"`
	// Resolved is false while the frame's slot was empty.
	Resolved bool   `json:"resolved" msgpack:"ok"`
	Location string `json:"location,omitempty" msgpack:"loc,omitempty"`
	Version  string `json:"version,omitempty" msgpack:"ver,omitempty"`
	Exact    bool   `json:"exact,omitempty" msgpack:"exact,omitempty"`
}

// Snapshot is the serializable form of a proxy tree.
type Snapshot struct {
	ClassName    string          `json:"class" msgpack:"class"`
	Message      string          `json:"message,omitempty" msgpack:"msg,omitempty"`
	CommonFrames uint32          `json:"common_frames,omitempty" msgpack:"common,omitempty"`
	Frames       []SnapshotFrame `json:"frames" msgpack:"frames"`
	Cause        *Snapshot       `json:"cause,omitempty" msgpack:"cause,omitempty"`
	Suppressed   []*Snapshot     `json:"suppressed,omitempty" msgpack:"suppressed,omitempty"`
}

// Snapshot captures p and everything below it. Line numbers outside the
// int32 range are recorded as zero.
func (p *Proxy) Snapshot() *Snapshot {
	if p == nil {
		return nil
	}
	s := &Snapshot{
		ClassName: p.ClassName,
		Message:   p.Message,
		Frames:    make([]SnapshotFrame, 0, len(p.frames)),
	}
	if n, err := safecast.Conv[uint32](p.CommonFrames); err == nil {
		s.CommonFrames = n
	}
	for _, f := range p.frames {
		if f == nil {
			continue
		}
		sf := SnapshotFrame{Function: f.Function, File: f.File}
		if line, err := safecast.Conv[int32](f.Line); err == nil {
			sf.Line = line
		}
		if d := f.PackagingData(); d != nil {
			sf.Resolved = true
			sf.Location, sf.Version, sf.Exact = d.CodeLocation, d.Version, d.Exact
		}
		s.Frames = append(s.Frames, sf)
	}
	s.Cause = p.cause.Snapshot()
	for _, sp := range p.suppressed {
		s.Suppressed = append(s.Suppressed, sp.Snapshot())
	}
	return s
}

// Proxy rebuilds a proxy tree from the snapshot. Resolved frames come back
// with their slots filled.
func (s *Snapshot) Proxy() *Proxy {
	return s.proxy(nil)
}

func (s *Snapshot) proxy(root *Proxy) *Proxy {
	if s == nil {
		return nil
	}
	p := &Proxy{
		ClassName:    s.ClassName,
		Message:      s.Message,
		CommonFrames: min(int(s.CommonFrames), len(s.Frames)),
		root:         root,
	}
	if root == nil {
		root = p
	}
	for _, sf := range s.Frames {
		f := NewFrame(Element{Function: sf.Function, File: sf.File, Line: int(sf.Line)})
		if sf.Resolved {
			f.setPackagingData(packaging.Data{CodeLocation: sf.Location, Version: sf.Version, Exact: sf.Exact})
		}
		p.frames = append(p.frames, f)
	}
	p.cause = s.Cause.proxy(root)
	for _, sp := range s.Suppressed {
		if sp != nil {
			p.suppressed = append(p.suppressed, sp.proxy(root))
		}
	}
	return p
}

// Snapshot encodings.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// EncodeSnapshot writes s to w in the given encoding.
func EncodeSnapshot(w io.Writer, s *Snapshot, encoding string) error {
	switch encoding {
	case EncodingJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case EncodingMsgpack:
		return msgpack.NewEncoder(w).Encode(s)
	default:
		return fmt.Errorf("unknown snapshot encoding %q", encoding)
	}
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader, encoding string) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch encoding {
	case EncodingJSON:
		err = json.NewDecoder(r).Decode(&s)
	case EncodingMsgpack:
		err = msgpack.NewDecoder(r).Decode(&s)
	default:
		return nil, fmt.Errorf("unknown snapshot encoding %q", encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", encoding, err)
	}
	return &s, nil
}
