package codegen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

const shapesWIT = `interface shapes {
  record point { x: f64, y: f64 }
  variant shape { circle(f64), polygon(list<point>), empty }
  enum color { red, green, blue }
  flags style { bold, italic }
  resource canvas
  type points = list<point>

  draw: func(c: borrow<canvas>, s: shape, fill: option<color>) -> result<u32, string>
  bounds: func(ps: points) -> tuple<point, point>
  styled: func(s: style) -> style
}`

func analyze(t *testing.T, src string) *Interface {
	t.Helper()
	iface, err := witsrc.Load(src, "test.wit")
	require.NoError(t, err)
	info, err := Analyze(iface)
	require.NoError(t, err)
	return info
}

func TestTypeTable_Order(t *testing.T) {
	info := analyze(t, shapesWIT)

	var kinds, names []string
	for _, e := range info.Types.Entries() {
		kinds = append(kinds, e.Kind)
		names = append(names, e.Name)
	}

	// Declared types first, then reachable types in walk order.
	assert.Equal(t, []string{"point", "shape", "color", "style", "canvas", "points"}, names[:6])
	assert.Equal(t, []string{KindRecord, KindVariant, KindEnum, KindFlags, KindResource, KindAlias}, kinds[:6])
	assert.Equal(t, []string{"f64", KindList}, kinds[6:8])

	for i, e := range info.Types.Entries() {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, i, info.Types.Index(e.Type))
	}
	assert.Equal(t, -1, info.Types.Index(nil))
}

func TestTypeTable_Deterministic(t *testing.T) {
	a, err := analyze(t, shapesWIT).DescriptorJSON()
	require.NoError(t, err)
	b, err := analyze(t, shapesWIT).DescriptorJSON()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestDescriptor(t *testing.T) {
	info := analyze(t, shapesWIT)
	raw, err := info.DescriptorJSON()
	require.NoError(t, err)

	var d Descriptor
	require.NoError(t, json.Unmarshal(raw, &d))
	assert.Equal(t, "shapes", d.Interface)

	point := d.Types[0]
	assert.Equal(t, "record", point.Kind)
	assert.Equal(t, uint32(16), point.Size)
	assert.Equal(t, uint32(8), point.Align)
	require.Len(t, point.Fields, 2)
	assert.Equal(t, uint32(8), point.Fields[1].Offset)
	assert.Equal(t, []string{"f64", "f64"}, point.Flat)

	shape := d.Types[1]
	require.Len(t, shape.Cases, 3)
	assert.Nil(t, shape.Cases[2].Type)
	assert.Equal(t, uint32(1), shape.Discriminant)

	style := d.Types[3]
	assert.Equal(t, []string{"bold", "italic"}, style.Flags)

	require.Len(t, d.Functions, 3)
	draw := d.Functions[0]
	assert.Equal(t, "draw", draw.Name)
	assert.Equal(t, []string{"c", "s", "fill"}, draw.ParamNames)
	assert.True(t, draw.IndirectResults)
	assert.Equal(t, "ptr", draw.CoreParams[len(draw.CoreParams)-1])

	styled := d.Functions[2]
	assert.False(t, styled.IndirectResults)
	assert.Equal(t, []string{"i32"}, styled.CoreResults)
}

func TestSignatures(t *testing.T) {
	info := analyze(t, shapesWIT)
	sigs := info.CoreSignatures()
	assert.Equal(t, "(i32) -> (i32)", sigs["styled"])
	assert.Equal(t, "(ptr, i32, ptr) -> ()", sigs["bounds"])

	s := info.Signature("bounds")
	require.NotNil(t, s)
	assert.True(t, s.Core.IndirectResults)
	assert.Equal(t, info.Types.Index(s.Function.Params[0].Type), s.Params[0])
	assert.Nil(t, info.Signature("missing"))

	calc := info.Types.Calculator()
	l, err := calc.Layout(s.Function.Results[0].Type)
	require.NoError(t, err)
	assert.Equal(t, []abi.Slot{abi.F64, abi.F64, abi.F64, abi.F64}, l.Flat)
}

func TestModuleFilename(t *testing.T) {
	tests := map[string]string{
		"calc":            "calc.wasm",
		"calc.wasm":       "calc.wasm",
		"target/out.wasm": "out.wasm",
		`dir\win.wasm`:    "win.wasm",
		"":                "module.wasm",
		"nested/dir/":     "dir.wasm",
	}
	for in, want := range tests {
		assert.Equal(t, want, ModuleFilename(model.Module{Name: in}), in)
	}
}
