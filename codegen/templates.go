package codegen

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/wippyai/wasm-pack/errors"
)

// FuncMap is available to every template: the sprig text functions plus
// the identifier conversions.
func FuncMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["pascal"] = func(s string) string { return Convert(s, Pascal) }
	fm["camel"] = func(s string) string { return Convert(s, Camel) }
	fm["snake"] = func(s string) string { return Convert(s, Snake) }
	fm["screaming"] = func(s string) string { return Convert(s, ScreamingSnake) }
	return fm
}

// LoadTemplates parses every *.tmpl file under root. Templates are named
// by their path below root without the extension, e.g. "index.js".
func LoadTemplates(fsys fs.FS, root string) (*template.Template, error) {
	tmpl := template.New("").Funcs(FuncMap())

	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", path, err)
		}

		name := strings.TrimPrefix(path, root+"/")
		name = strings.TrimSuffix(name, ".tmpl")

		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("parsing template %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "loading templates")
	}
	return tmpl, nil
}

// Render executes the named template.
func Render(tmpl *template.Template, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "rendering "+name)
	}
	return buf.Bytes(), nil
}
