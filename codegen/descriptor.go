package codegen

import (
	"encoding/json"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/errors"
)

// Descriptor is the language-neutral description of an interface that the
// Python and JavaScript intrinsics interpret to move values across the
// boundary. Type references are TypeTable indexes.
type Descriptor struct {
	Interface string               `json:"interface"`
	Types     []TypeDescriptor     `json:"types"`
	Functions []FunctionDescriptor `json:"functions"`
}

// TypeDescriptor describes one TypeTable row.
type TypeDescriptor struct {
	Kind          string            `json:"kind"`
	Name          string            `json:"name,omitempty"`
	Element       *int              `json:"element,omitempty"`
	Flat          []string          `json:"flat"`
	Fields        []FieldDescriptor `json:"fields,omitempty"`
	Cases         []CaseDescriptor  `json:"cases,omitempty"`
	Flags         []string          `json:"flags,omitempty"`
	Size          uint32            `json:"size"`
	Align         uint32            `json:"align"`
	Discriminant  uint32            `json:"discriminant,omitempty"`
	PayloadOffset uint32            `json:"payload_offset,omitempty"`
}

// FieldDescriptor is a record field or tuple element.
type FieldDescriptor struct {
	Name   string `json:"name,omitempty"`
	Type   int    `json:"type"`
	Offset uint32 `json:"offset"`
}

// CaseDescriptor is a variant, option or result case. Type is nil for
// cases without payload.
type CaseDescriptor struct {
	Type *int   `json:"type,omitempty"`
	Name string `json:"name"`
}

// FunctionDescriptor describes a function and its calling convention.
type FunctionDescriptor struct {
	Name            string   `json:"name"`
	Params          []int    `json:"params"`
	ParamNames      []string `json:"param_names"`
	Results         []int    `json:"results"`
	CoreParams      []string `json:"core_params"`
	CoreResults     []string `json:"core_results"`
	ParamOffsets    []uint32 `json:"param_offsets,omitempty"`
	ResultOffsets   []uint32 `json:"result_offsets,omitempty"`
	ParamSize       uint32   `json:"param_size"`
	ParamAlign      uint32   `json:"param_align"`
	ResultSize      uint32   `json:"result_size"`
	ResultAlign     uint32   `json:"result_align"`
	IndirectParams  bool     `json:"indirect_params"`
	IndirectResults bool     `json:"indirect_results"`
}

// Describe builds the descriptor of an analyzed interface.
func (i *Interface) Describe() Descriptor {
	d := Descriptor{
		Interface: i.Name,
		Types:     make([]TypeDescriptor, 0, len(i.Types.Entries())),
		Functions: make([]FunctionDescriptor, 0, len(i.Signatures)),
	}
	for _, e := range i.Types.Entries() {
		d.Types = append(d.Types, i.describeType(e))
	}
	for _, s := range i.Signatures {
		d.Functions = append(d.Functions, describeFunction(s))
	}
	return d
}

// DescriptorJSON renders the descriptor as indented JSON.
func (i *Interface) DescriptorJSON() ([]byte, error) {
	b, err := json.MarshalIndent(i.Describe(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "encode descriptor for "+i.Name)
	}
	return b, nil
}

func slotNames(slots []abi.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func (i *Interface) ref(t wit.Type) *int {
	if t == nil {
		return nil
	}
	idx := i.Types.Index(t)
	return &idx
}

func (i *Interface) describeType(e *TypeEntry) TypeDescriptor {
	d := TypeDescriptor{
		Kind:  e.Kind,
		Size:  e.Layout.Size,
		Align: e.Layout.Align,
		Flat:  slotNames(e.Layout.Flat),
	}
	if e.Decl != nil {
		d.Name = e.Decl.Name
	}
	td, ok := e.Type.(*wit.TypeDef)
	if !ok {
		return d
	}
	d.Discriminant = e.Layout.Discriminant
	d.PayloadOffset = e.Layout.PayloadOffset

	switch k := td.Kind.(type) {
	case *wit.Record:
		for n, f := range k.Fields {
			d.Fields = append(d.Fields, FieldDescriptor{Name: f.Name, Type: i.Types.Index(f.Type), Offset: e.Layout.Offsets[n]})
		}
	case *wit.Tuple:
		for n, t := range k.Types {
			d.Fields = append(d.Fields, FieldDescriptor{Type: i.Types.Index(t), Offset: e.Layout.Offsets[n]})
		}
	case *wit.Variant:
		for _, c := range k.Cases {
			d.Cases = append(d.Cases, CaseDescriptor{Name: c.Name, Type: i.ref(c.Type)})
		}
	case *wit.Enum:
		for _, c := range k.Cases {
			d.Cases = append(d.Cases, CaseDescriptor{Name: c.Name})
		}
	case *wit.Option:
		d.Cases = []CaseDescriptor{{Name: "none"}, {Name: "some", Type: i.ref(k.Type)}}
	case *wit.Result:
		d.Cases = []CaseDescriptor{{Name: "ok", Type: i.ref(k.OK)}, {Name: "err", Type: i.ref(k.Err)}}
	case *wit.Flags:
		for _, f := range k.Flags {
			d.Flags = append(d.Flags, f.Name)
		}
	case *wit.List:
		d.Element = i.ref(k.Type)
	case *wit.Own:
		d.Element = i.ref(k.Type)
	case *wit.Borrow:
		d.Element = i.ref(k.Type)
	case *wit.Resource:
	case wit.Type:
		d.Element = i.ref(k)
	}
	return d
}

func describeFunction(s *Signature) FunctionDescriptor {
	fd := FunctionDescriptor{
		Name:            s.Function.Name,
		Params:          nonNil(s.Params),
		Results:         nonNil(s.Results),
		CoreParams:      slotNames(s.Core.Params),
		CoreResults:     slotNames(s.Core.Results),
		ParamSize:       s.Core.ParamLayout.Size,
		ParamAlign:      s.Core.ParamLayout.Align,
		ResultSize:      s.Core.ResultLayout.Size,
		ResultAlign:     s.Core.ResultLayout.Align,
		IndirectParams:  s.Core.IndirectParams,
		IndirectResults: s.Core.IndirectResults,
	}
	fd.ParamNames = make([]string, len(s.Function.Params))
	for i, p := range s.Function.Params {
		fd.ParamNames[i] = p.Name
	}
	if s.Core.IndirectParams {
		fd.ParamOffsets = s.Core.ParamLayout.Offsets
	}
	if s.Core.IndirectResults {
		fd.ResultOffsets = s.Core.ResultLayout.Offsets
	}
	return fd
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
