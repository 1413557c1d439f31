package ir

import (
	"fmt"
	"io"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/spindle-lang/spindle/core/types"
)

// FormatVersion is bumped whenever the wire layout changes
// incompatibly. Decoding rejects any other version.
const FormatVersion = 1

// The wire form flattens maps into name-sorted slices so that encoding
// the same program always yields the same bytes.
type programWire struct {
	Version       int               `cbor:"1,keyasint"`
	Nodes         []nodeWire        `cbor:"2,keyasint"`
	InitialValues []initialSlotWire `cbor:"3,keyasint"`
}

type nodeWire struct {
	Name         string            `cbor:"1,keyasint"`
	Tags         []string          `cbor:"2,keyasint"`
	Headers      []headerWire      `cbor:"3,keyasint"`
	Labels       []labelWire       `cbor:"4,keyasint"`
	Instructions []instructionWire `cbor:"5,keyasint"`
	SourceFile   string            `cbor:"6,keyasint"`
}

type headerWire struct {
	Key   string `cbor:"1,keyasint"`
	Value string `cbor:"2,keyasint"`
}

type labelWire struct {
	Name string `cbor:"1,keyasint"`
	PC   int    `cbor:"2,keyasint"`
}

type instructionWire struct {
	Op    int     `cbor:"1,keyasint"`
	Label string  `cbor:"2,keyasint,omitempty"`
	Dest  int     `cbor:"3,keyasint,omitempty"`
	Str   string  `cbor:"4,keyasint,omitempty"`
	Float float32 `cbor:"5,keyasint,omitempty"`
	Count int     `cbor:"6,keyasint,omitempty"`
	Flag  bool    `cbor:"7,keyasint,omitempty"`
}

type initialSlotWire struct {
	Name  string    `cbor:"1,keyasint"`
	Value valueWire `cbor:"2,keyasint"`
}

type valueWire struct {
	Kind   int     `cbor:"1,keyasint"`
	Number float32 `cbor:"2,keyasint,omitempty"`
	Text   string  `cbor:"3,keyasint,omitempty"`
	Bool   bool    `cbor:"4,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("building cbor encode mode: %v", err))
	}
}

// WriteProgram serializes p to w in the stable binary format.
func WriteProgram(w io.Writer, p *Program) error {
	wire := programWire{Version: FormatVersion}
	for _, name := range p.NodeNames() {
		n, _ := p.Node(name)
		nw := nodeWire{
			Name:       n.Name,
			Tags:       n.Tags,
			SourceFile: n.SourceFile,
		}
		for _, h := range n.Headers {
			nw.Headers = append(nw.Headers, headerWire(h))
		}
		for _, label := range sortedLabelNames(n.Labels) {
			nw.Labels = append(nw.Labels, labelWire{Name: label, PC: n.Labels[label]})
		}
		for _, in := range n.Instructions {
			nw.Instructions = append(nw.Instructions, instructionWire{
				Op:    int(in.Op),
				Label: in.Label,
				Dest:  in.Dest,
				Str:   in.Str,
				Float: in.Float,
				Count: in.Count,
				Flag:  in.Flag,
			})
		}
		wire.Nodes = append(wire.Nodes, nw)
	}
	for _, name := range p.InitialValueNames() {
		v, _ := p.InitialValue(name)
		wire.InitialValues = append(wire.InitialValues, initialSlotWire{
			Name:  name,
			Value: encodeValue(v),
		})
	}
	return encMode.NewEncoder(w).Encode(wire)
}

// ReadProgram decodes a program written by WriteProgram.
func ReadProgram(r io.Reader) (*Program, error) {
	var wire programWire
	if err := cbor.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	if wire.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported program format version %d (want %d)",
			wire.Version, FormatVersion)
	}
	nodes := make(map[string]*Node, len(wire.Nodes))
	for _, nw := range wire.Nodes {
		n := &Node{
			Name:       nw.Name,
			Tags:       nw.Tags,
			SourceFile: nw.SourceFile,
			Labels:     make(map[string]int, len(nw.Labels)),
		}
		for _, h := range nw.Headers {
			n.Headers = append(n.Headers, Header(h))
		}
		for _, l := range nw.Labels {
			n.Labels[l.Name] = l.PC
		}
		for _, iw := range nw.Instructions {
			op := OpCode(iw.Op)
			if !op.Valid() {
				return nil, fmt.Errorf("node %q: invalid opcode %d", nw.Name, iw.Op)
			}
			n.Instructions = append(n.Instructions, Instruction{
				Op:    op,
				Label: iw.Label,
				Dest:  iw.Dest,
				Str:   iw.Str,
				Float: iw.Float,
				Count: iw.Count,
				Flag:  iw.Flag,
			})
		}
		if _, dup := nodes[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node %q in serialized program", n.Name)
		}
		nodes[n.Name] = n
	}
	initial := make(map[string]types.Value, len(wire.InitialValues))
	for _, slot := range wire.InitialValues {
		v, err := decodeValue(slot.Value)
		if err != nil {
			return nil, fmt.Errorf("initial value %q: %w", slot.Name, err)
		}
		initial[slot.Name] = v
	}
	return NewProgram(nodes, initial), nil
}

func encodeValue(v types.Value) valueWire {
	w := valueWire{Kind: int(v.Kind())}
	switch v.Kind() {
	case types.KindNumber:
		n, _ := v.AsNumber()
		w.Number = n
	case types.KindString:
		w.Text = v.AsString()
	case types.KindBool:
		b, _ := v.AsBool()
		w.Bool = b
	}
	return w
}

func decodeValue(w valueWire) (types.Value, error) {
	switch types.ValueKind(w.Kind) {
	case types.KindNull:
		return types.Null, nil
	case types.KindNumber:
		return types.NumberValue(w.Number), nil
	case types.KindString:
		return types.StringValue(w.Text), nil
	case types.KindBool:
		return types.BoolValue(w.Bool), nil
	default:
		return types.Null, fmt.Errorf("invalid value kind %d", w.Kind)
	}
}

func sortedLabelNames(labels map[string]int) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
