package assemble

import (
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

// Layout names the directories of a generated package, relative to the
// output root.
type Layout struct {
	// Root holds entry points and intrinsics.
	Root string
	// Libraries holds one directory per library.
	Libraries string
	// Commands holds the command launchers.
	Commands string
}

// Part is the output for one library or command. File paths are relative
// to the part's directory.
type Part struct {
	Name  string
	Files []File
}

// Bundle is everything one generator produced for a package.
type Bundle struct {
	Layout Layout
	// Manifest path is relative to the output root.
	Manifest File
	// EntryPoints and Intrinsics are relative to Layout.Root.
	EntryPoints []File
	Intrinsics  []File
	// Libraries are placed under Layout.Libraries/<name>.
	Libraries []Part
	// Commands are placed directly under Layout.Commands; command file
	// names already carry the command name.
	Commands []Part
	// Extra files are relative to the output root.
	Extra []File
}

// Assemble places the bundle's files and returns them sorted by path.
func Assemble(meta model.Metadata, b *Bundle) (FileSet, error) {
	if b == nil {
		return nil, errors.InvalidInput(errors.PhaseAssemble, "nil bundle")
	}
	if b.Manifest.Path == "" {
		return nil, errors.InvalidInput(errors.PhaseAssemble, "bundle has no manifest")
	}
	if len(b.EntryPoints) == 0 {
		return nil, errors.InvalidInput(errors.PhaseAssemble, "bundle has no entry point")
	}

	a := &assembler{seen: make(map[string]string)}
	a.add("manifest", "", b.Manifest)
	for _, f := range b.Extra {
		a.add("package", "", f)
	}
	for _, f := range b.EntryPoints {
		a.add("entry point", b.Layout.Root, f)
	}
	for _, f := range b.Intrinsics {
		a.add("intrinsics", b.Layout.Root, f)
	}
	for _, part := range b.Libraries {
		dir := join(b.Layout.Libraries, part.Name)
		for _, f := range part.Files {
			a.add("library "+part.Name, dir, f)
		}
	}
	for _, part := range b.Commands {
		for _, f := range part.Files {
			a.add("command "+part.Name, b.Layout.Commands, f)
		}
	}
	if a.err != nil {
		return nil, a.err
	}

	sort.Slice(a.files, func(i, j int) bool { return a.files[i].Path < a.files[j].Path })
	Logger().Debug("assembled package",
		zap.String("package", meta.Name.String()),
		zap.String("version", meta.Version),
		zap.Int("files", len(a.files)))
	return a.files, nil
}

type assembler struct {
	err   error
	seen  map[string]string
	files FileSet
}

func (a *assembler) add(owner, dir string, f File) {
	if a.err != nil {
		return
	}
	p := join(dir, f.Path)
	if p == "." || strings.HasPrefix(p, "../") || path.IsAbs(p) {
		a.err = errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Path(owner).
			Detail("file path %q escapes the package root", f.Path).
			Build()
		return
	}
	if first, dup := a.seen[p]; dup {
		a.err = errors.New(errors.PhaseAssemble, errors.KindNameCollision).
			Path(p).
			Detail("%s and %s both write %s", first, owner, p).
			Value(p).
			Build()
		return
	}
	a.seen[p] = owner
	f.Path = p
	a.files = append(a.files, f)
}
