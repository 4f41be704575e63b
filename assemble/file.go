package assemble

import (
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Kind classifies a generated file.
type Kind int

const (
	KindManifest Kind = iota
	KindEntryPoint
	KindIndex
	KindBindings
	KindTypings
	KindIntrinsics
	KindWasm
	KindLauncher
	KindSource
	KindMetadata
)

var kindNames = [...]string{
	"manifest",
	"entry-point",
	"index",
	"bindings",
	"typings",
	"intrinsics",
	"wasm",
	"launcher",
	"source",
	"metadata",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// File is one generated file. Path is slash separated and relative to the
// output root.
type File struct {
	Path     string
	Contents []byte
	Kind     Kind
}

// FileSet is an assembled package, sorted by path.
type FileSet []File

// Paths lists the file paths in order.
func (fs FileSet) Paths() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Path
	}
	return out
}

// Get finds a file by path.
func (fs FileSet) Get(p string) (File, bool) {
	i := sort.Search(len(fs), func(i int) bool { return fs[i].Path >= p })
	if i < len(fs) && fs[i].Path == p {
		return fs[i], true
	}
	return File{}, false
}

// OfKind returns the files of kind k.
func (fs FileSet) OfKind(k Kind) []File {
	var out []File
	for _, f := range fs {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

// Size is the total number of content bytes.
func (fs FileSet) Size() int {
	n := 0
	for _, f := range fs {
		n += len(f.Contents)
	}
	return n
}

// WriteTo writes every file below dir, creating directories as needed.
func (fs FileSet) WriteTo(dir string) error {
	for _, f := range fs {
		dst := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, f.Contents, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func join(dir, p string) string {
	if dir == "" {
		return path.Clean(p)
	}
	return path.Join(dir, p)
}
