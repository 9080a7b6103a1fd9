package packaging

import "strings"

const na = "na"

// Data describes where the code of one package came from.
type Data struct {
	CodeLocation string // module path, "std", or vendored package
	Version      string
	Exact        bool // resolved from build metadata rather than guessed
}

// Unavailable marks a frame whose provenance could not be resolved.
var Unavailable = Data{CodeLocation: na, Version: na}

// IsAvailable reports whether d carries real provenance.
func (d Data) IsAvailable() bool {
	return d != Unavailable
}

// String renders d as "[loc:ver]", or "~[loc:ver]" when the data was guessed.
func (d Data) String() string {
	var sb strings.Builder
	if !d.Exact && d.IsAvailable() {
		sb.WriteByte('~')
	}
	sb.WriteByte('[')
	sb.WriteString(orNA(d.CodeLocation))
	sb.WriteByte(':')
	sb.WriteString(orNA(d.Version))
	sb.WriteByte(']')
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return na
	}
	return s
}
