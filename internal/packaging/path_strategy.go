package packaging

import (
	"strings"
	"unicode"
)

// PathStrategy guesses provenance from the frame's source file location. It
// never opens the file; only the path is inspected.
type PathStrategy struct{}

// Name implements Strategy.
func (PathStrategy) Name() string { return "path" }

// Resolve implements Strategy.
func (PathStrategy) Resolve(ref ClassRef, l *Loader) (Data, error) {
	file := strings.ReplaceAll(ref.File, `\`, "/")
	if file == "" {
		return Data{}, ErrUnknown
	}

	if mod, ver, ok := moduleFromPath(file); ok {
		return Data{CodeLocation: mod, Version: ver}, nil
	}

	if root := l.GOROOT(); root != "" && strings.HasPrefix(file, root+"/src/") {
		return Data{CodeLocation: "std", Version: l.GoVersion()}, nil
	}

	// -trimpath std sources are relative to GOROOT/src.
	if !strings.HasPrefix(file, "/") && isStdPackage(ref.Package) &&
		strings.HasPrefix(file, ref.Package+"/") {
		return Data{CodeLocation: "std", Version: l.GoVersion()}, nil
	}

	if i := strings.LastIndex(file, "/vendor/"); i >= 0 && ref.Package != "" {
		return Data{CodeLocation: vendoredModule(file[i+len("/vendor/"):], ref.Package), Version: "vendored"}, nil
	}

	return Data{}, ErrUnknown
}

// moduleFromPath extracts "<module>@<version>" from module cache and
// -trimpath source paths.
func moduleFromPath(file string) (string, string, bool) {
	rest := file
	if i := strings.LastIndex(file, "/pkg/mod/"); i >= 0 {
		rest = file[i+len("/pkg/mod/"):]
	}
	at := strings.Index(rest, "@")
	if at <= 0 {
		return "", "", false
	}
	ver := rest[at+1:]
	if slash := strings.IndexByte(ver, '/'); slash >= 0 {
		ver = ver[:slash]
	}
	if ver == "" {
		return "", "", false
	}
	mod := rest[:at]
	if strings.HasPrefix(mod, "/") || strings.HasPrefix(mod, "cache/") {
		return "", "", false
	}
	return unescapePath(mod), unescapePath(ver), true
}

// vendoredModule trims the vendored file path to the longest prefix that is
// also a prefix of the package path.
func vendoredModule(rel, pkg string) string {
	dir := rel
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	}
	if strings.HasPrefix(pkg, dir) || dir == pkg {
		return pkg
	}
	return dir
}

// unescapePath reverses the module cache case encoding, where "!x" stands for "X".
func unescapePath(s string) string {
	if !strings.Contains(s, "!") {
		return s
	}
	var sb strings.Builder
	bang := false
	for _, r := range s {
		if bang {
			sb.WriteRune(unicode.ToUpper(r))
			bang = false
			continue
		}
		if r == '!' {
			bang = true
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
