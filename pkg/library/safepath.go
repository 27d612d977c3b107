package library

import (
	"path"
	"path/filepath"
	"strings"
)

// SafePath is a sanitized relative path accepted from untrusted input
// such as a package manifest. It can never escape the directory it is
// resolved against.
type SafePath struct {
	rel string
}

// NewSafePath validates and normalizes a slash-separated relative path.
// Parent traversal, absolute paths, and components that are unsafe on
// any supported platform are rejected.
func NewSafePath(raw string) (SafePath, bool) {
	cleaned := path.Clean(strings.ReplaceAll(raw, "\\", "/"))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "/") {
		return SafePath{}, false
	}

	for _, component := range strings.Split(cleaned, "/") {
		if !safeComponent(component) {
			return SafePath{}, false
		}
	}
	return SafePath{rel: cleaned}, true
}

func safeComponent(component string) bool {
	if component == "" || component == "." || component == ".." {
		return false
	}
	// Windows disallows these anywhere and trailing dots or spaces.
	if strings.ContainsAny(component, `<>:"|?*`) {
		return false
	}
	for _, r := range component {
		if r < 0x20 {
			return false
		}
	}
	if strings.HasSuffix(component, ".") || strings.HasSuffix(component, " ") {
		return false
	}
	return true
}

// String returns the normalized slash-separated form.
func (p SafePath) String() string { return p.rel }

// Resolve joins the safe path under base using native separators.
func (p SafePath) Resolve(base string) string {
	return filepath.Join(base, filepath.FromSlash(p.rel))
}

// Ext returns the extension of the final component, including the dot.
func (p SafePath) Ext() string { return path.Ext(p.rel) }

// FileName returns the final component.
func (p SafePath) FileName() string { return path.Base(p.rel) }

// InstallPath is the destination of one installed file relative to the
// target's game directory: either a trusted raw path built by the
// launcher itself, or a sanitized path from untrusted input.
type InstallPath struct {
	raw  string
	safe SafePath
	soft bool
}

// RawInstallPath wraps a launcher-built relative path.
func RawInstallPath(rel string) InstallPath {
	return InstallPath{raw: rel}
}

// SafeInstallPath wraps a sanitized untrusted path.
func SafeInstallPath(p SafePath) InstallPath {
	return InstallPath{safe: p, soft: true}
}

// Ext returns the destination's extension, including the dot.
func (p InstallPath) Ext() string {
	if p.soft {
		return p.safe.Ext()
	}
	return filepath.Ext(p.raw)
}

// FileName returns the destination's final component.
func (p InstallPath) FileName() string {
	if p.soft {
		return p.safe.FileName()
	}
	return filepath.Base(p.raw)
}

// Resolve joins the destination under base.
func (p InstallPath) Resolve(base string) string {
	if p.soft {
		return p.safe.Resolve(base)
	}
	return filepath.Join(base, p.raw)
}
