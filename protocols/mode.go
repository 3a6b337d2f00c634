package protocols

import (
	"fmt"
	"strings"
)

// TransferMode selects how bytes move over the connection.
type TransferMode uint8

const (
	// Binary moves bytes verbatim (FTP TYPE I).
	Binary TransferMode = iota + 1
	// Text allows the server to translate line endings (FTP TYPE A).
	Text
)

func (m TransferMode) String() string {
	switch m {
	case Binary:
		return "binary"
	case Text:
		return "text"
	}
	return fmt.Sprintf("TransferMode(%d)", uint8(m))
}

// Valid reports whether m is Binary or Text.
func (m TransferMode) Valid() bool {
	return m == Binary || m == Text
}

// ParseTransferMode accepts the names used in config files and on the command line.
func ParseTransferMode(s string) (TransferMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "bin", "i", "image":
		return Binary, nil
	case "text", "ascii", "a":
		return Text, nil
	}
	return 0, fmt.Errorf("unknown transfer mode: %q", s)
}

var defaultTextExtensions = []string{
	"txt", "text", "csv", "tsv", "log",
	"htm", "html", "xhtml", "css", "js", "xml", "svg",
	"json", "yaml", "yml", "toml", "ini", "conf", "cfg", "properties",
	"md", "rst", "tex",
	"sql", "sh", "bash", "bat", "cmd", "ps1",
	"php", "py", "pl", "rb", "go", "c", "h", "cpp", "java",
}

var defaultTextNames = []string{
	"readme", "license", "makefile", "dockerfile", "changelog", ".htaccess",
}

// Resolver classifies paths as Binary or Text by the shape of their final
// segment. It never looks at file contents or the connection.
type Resolver struct {
	exts  map[string]struct{}
	names map[string]struct{}
}

// NewResolver builds a Resolver treating the given extensions (with or
// without the leading dot) as text. An empty list yields a Resolver that
// always answers Binary except for the well-known text file names.
func NewResolver(exts ...string) *Resolver {
	r := &Resolver{
		exts:  make(map[string]struct{}, len(exts)),
		names: make(map[string]struct{}, len(defaultTextNames)),
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			r.exts[ext] = struct{}{}
		}
	}
	for _, name := range defaultTextNames {
		r.names[name] = struct{}{}
	}
	return r
}

// DefaultResolver returns a Resolver with the built-in text extension set.
func DefaultResolver() *Resolver {
	return NewResolver(defaultTextExtensions...)
}

// Resolve returns the transfer mode for p. Both '/' and '\' separate segments
// so the same rule applies to local and remote paths.
func (r *Resolver) Resolve(p string) TransferMode {
	if r == nil {
		r = DefaultResolver()
	}
	base := p
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ToLower(base)
	if base == "" {
		return Binary
	}
	if _, ok := r.names[base]; ok {
		return Text
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return Binary
	}
	if _, ok := r.exts[base[i+1:]]; ok {
		return Text
	}
	return Binary
}
