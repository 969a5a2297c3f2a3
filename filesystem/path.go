package filesystem

import (
	"strings"

	"github.com/brettbedarf/clifs"
)

// Separator between path components
const Separator = "/"

// PathComponents splits an absolute path into its non-empty components.
//
// I.e. /this//that/hello.txt/ -> {this, that, hello.txt}
func PathComponents(p string) []string {
	parts := strings.Split(p, Separator)
	components := parts[:0]
	for _, part := range parts {
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}

// ParentPath returns the absolute path of p's parent directory, always with a
// trailing separator. The parent of "/" (and of any single component) is "/".
func ParentPath(p string) string {
	components := PathComponents(p)
	if len(components) > 0 {
		components = components[:len(components)-1]
	}
	var b strings.Builder
	b.WriteString(Separator)
	for _, comp := range components {
		b.WriteString(comp)
		b.WriteString(Separator)
	}
	return b.String()
}

// SplitLeaf returns the parent path and final component of p.
// Paths without components (i.e. "/" or "") are not addressable leaves.
func SplitLeaf(p string) (parent, leaf string, err error) {
	components := PathComponents(p)
	if len(components) == 0 {
		return "", "", &clifs.Error{Kind: clifs.InvalidOperation, Op: "split", Path: p}
	}
	return ParentPath(p), components[len(components)-1], nil
}

// JoinPath appends name to the directory path dir.
func JoinPath(dir, name string) string {
	if strings.HasSuffix(dir, Separator) {
		return dir + name
	}
	return dir + Separator + name
}
