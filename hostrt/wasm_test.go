package hostrt

// Hand-assembled core modules for tests.

const (
	tI32 byte = 0x7f
	tI64 byte = 0x7e
)

const (
	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Store    = 0x36
	opI32Const    = 0x41
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI32And      = 0x71
	opEnd         = 0x0b
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wname(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

type funcType struct {
	params, results []byte
}

type wasmImport struct {
	module, name string
	typ          uint32
}

type wasmFunc struct {
	typ    uint32
	export string
	locals []byte
	body   []byte
}

type wasmData struct {
	offset int32
	bytes  []byte
}

type moduleBuilder struct {
	types   []funcType
	imports []wasmImport
	funcs   []wasmFunc
	memory  bool
	bump    bool
	data    []wasmData
}

func (m *moduleBuilder) typeIndex(params, results []byte) uint32 {
	for i, t := range m.types {
		if string(t.params) == string(params) && string(t.results) == string(results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params, results})
	return uint32(len(m.types) - 1)
}

func (m *moduleBuilder) importFunc(module, fn string, params, results []byte) *moduleBuilder {
	m.imports = append(m.imports, wasmImport{module, fn, m.typeIndex(params, results)})
	return m
}

func (m *moduleBuilder) export(fn string, params, results []byte, body ...byte) *moduleBuilder {
	m.funcs = append(m.funcs, wasmFunc{typ: m.typeIndex(params, results), export: fn, body: body})
	return m
}

// withRealloc adds a bump allocator exported as cabi_realloc, starting at
// address 1024.
func (m *moduleBuilder) withRealloc() *moduleBuilder {
	m.memory = true
	m.bump = true
	body := []byte{
		opGlobalGet, 0,
		opLocalGet, 2, opI32Add,
		opI32Const, 1, opI32Sub,
		opI32Const, 0, opLocalGet, 2, opI32Sub,
		opI32And,
		opLocalTee, 4,
		opLocalGet, 3, opI32Add,
		opGlobalSet, 0,
		opLocalGet, 4,
	}
	m.funcs = append(m.funcs, wasmFunc{
		typ:    m.typeIndex([]byte{tI32, tI32, tI32, tI32}, []byte{tI32}),
		export: "cabi_realloc",
		locals: []byte{1, tI32},
		body:   body,
	})
	return m
}

func (m *moduleBuilder) withData(offset int32, b []byte) *moduleBuilder {
	m.memory = true
	m.data = append(m.data, wasmData{offset, b})
	return m
}

func section(id byte, content []byte) []byte {
	return append(append([]byte{id}, uleb(uint32(len(content)))...), content...)
}

func (m *moduleBuilder) build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	types := make([][]byte, len(m.types))
	for i, t := range m.types {
		ft := []byte{0x60}
		ft = append(ft, vec(bytesOf(t.params)...)...)
		ft = append(ft, vec(bytesOf(t.results)...)...)
		types[i] = ft
	}
	out = append(out, section(1, vec(types...))...)

	if len(m.imports) > 0 {
		imps := make([][]byte, len(m.imports))
		for i, im := range m.imports {
			b := append(wname(im.module), wname(im.name)...)
			b = append(b, 0x00)
			imps[i] = append(b, uleb(im.typ)...)
		}
		out = append(out, section(2, vec(imps...))...)
	}

	fidx := make([][]byte, len(m.funcs))
	for i, f := range m.funcs {
		fidx[i] = uleb(f.typ)
	}
	out = append(out, section(3, vec(fidx...))...)

	if m.memory {
		out = append(out, section(5, vec([]byte{0x00, 0x01}))...)
	}
	if m.bump {
		g := []byte{tI32, 0x01, opI32Const}
		g = append(g, sleb(1024)...)
		g = append(g, opEnd)
		out = append(out, section(6, vec(g))...)
	}

	var exps [][]byte
	if m.memory {
		exps = append(exps, append(wname("memory"), 0x02, 0x00))
	}
	for i, f := range m.funcs {
		if f.export == "" {
			continue
		}
		e := append(wname(f.export), 0x00)
		exps = append(exps, append(e, uleb(uint32(len(m.imports)+i))...))
	}
	out = append(out, section(7, vec(exps...))...)

	codes := make([][]byte, len(m.funcs))
	for i, f := range m.funcs {
		var body []byte
		if len(f.locals) > 0 {
			body = append(uleb(1), f.locals...)
		} else {
			body = uleb(0)
		}
		body = append(body, f.body...)
		body = append(body, opEnd)
		codes[i] = append(uleb(uint32(len(body))), body...)
	}
	out = append(out, section(10, vec(codes...))...)

	if len(m.data) > 0 {
		segs := make([][]byte, len(m.data))
		for i, d := range m.data {
			s := []byte{0x00, opI32Const}
			s = append(s, sleb(d.offset)...)
			s = append(s, opEnd)
			s = append(s, uleb(uint32(len(d.bytes)))...)
			segs[i] = append(s, d.bytes...)
		}
		out = append(out, section(11, vec(segs...))...)
	}
	return out
}

func bytesOf(b []byte) [][]byte {
	out := make([][]byte, len(b))
	for i := range b {
		out[i] = []byte{b[i]}
	}
	return out
}

func i32s(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = tI32
	}
	return out
}
