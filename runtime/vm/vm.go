// Package vm executes compiled programs cooperatively.
//
// The machine never blocks and never runs on its own: the host calls
// Continue, the machine executes instructions until it reaches a
// suspension point (a line, an option set, a command, or the end of a
// node chain), and returns the events produced on the way. The host is
// the scheduler.
package vm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/library"
	"github.com/spindle-lang/spindle/core/types"
)

// ExecutionState is the machine's lifecycle position.
type ExecutionState int

const (
	// Stopped is the initial state and the state after the dialogue
	// completes.
	Stopped ExecutionState = iota
	// WaitingOnOptionSelection means an option set was delivered and
	// SelectOption has not been called yet.
	WaitingOnOptionSelection
	// WaitingForContinue means SetNode or SelectOption has prepared the
	// machine and the host has not continued yet.
	WaitingForContinue
	// DeliveringContent means a line or command was just delivered.
	DeliveringContent
	// Running means instructions are being executed.
	Running
)

var executionStateNames = [...]string{
	Stopped:                  "Stopped",
	WaitingOnOptionSelection: "WaitingOnOptionSelection",
	WaitingForContinue:       "WaitingForContinue",
	DeliveringContent:        "DeliveringContent",
	Running:                  "Running",
}

func (s ExecutionState) String() string {
	if int(s) < len(executionStateNames) && int(s) >= 0 {
		return executionStateNames[s]
	}
	return fmt.Sprintf("ExecutionState(%d)", int(s))
}

// VM is a single-threaded cooperative interpreter over one program.
// The program is shared and immutable; all mutable state is private to
// the instance.
type VM struct {
	program *ir.Program
	storage VariableStorage
	library *library.Library

	state   ExecutionState
	started bool
	node    *ir.Node
	pc      int
	stack   []types.Value
	options []Option

	logger *slog.Logger
}

// New creates a machine over program. The storage is read and written
// through on variable access; the library resolves CALL_FUNC.
func New(program *ir.Program, storage VariableStorage, lib *library.Library) *VM {
	logLevel := slog.LevelInfo
	if os.Getenv("SPINDLE_DEBUG_VM") != "" {
		logLevel = slog.LevelDebug
	}
	return &VM{
		program: program,
		storage: storage,
		library: lib,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		})),
	}
}

// State returns the current execution state.
func (m *VM) State() ExecutionState { return m.state }

// CurrentNode returns the name of the node being executed, if any.
func (m *VM) CurrentNode() (string, bool) {
	if m.node == nil {
		return "", false
	}
	return m.node.Name, true
}

// SetNode positions the machine at the start of the named node. The
// first Continue afterwards begins executing it.
func (m *VM) SetNode(name string) error {
	node, ok := m.program.Node(name)
	if !ok {
		return &UnknownNodeError{Name: name, Suggestions: suggest(name, m.program.NodeNames())}
	}
	m.node = node
	m.pc = 0
	m.stack = m.stack[:0]
	m.options = m.options[:0]
	m.state = WaitingForContinue
	m.started = true
	return nil
}

// Stop halts the dialogue from any state. It is idempotent; the first
// call returns the DialogueCompleteEvent, later calls return nothing.
func (m *VM) Stop() []Event {
	if m.state == Stopped {
		return nil
	}
	m.reset()
	return []Event{DialogueCompleteEvent{}}
}

func (m *VM) reset() {
	m.state = Stopped
	m.node = nil
	m.pc = 0
	m.stack = m.stack[:0]
	m.options = m.options[:0]
}

// SelectOption answers a pending option set. The machine resumes from
// the chosen option's destination on the next Continue.
func (m *VM) SelectOption(id int) error {
	if m.state != WaitingOnOptionSelection {
		return ErrNoOptions
	}
	if id < 0 || id >= len(m.options) {
		return &IndexOutOfRangeError{Index: id, Count: len(m.options)}
	}
	m.pc = m.options[id].destinationPC
	m.options = m.options[:0]
	m.state = WaitingForContinue
	return nil
}

// Continue executes instructions until the next suspension point and
// returns the events produced, in program order. A returned error
// leaves the machine Stopped except for pure API misuse (ErrNotStarted
// and friends), which leave it untouched.
func (m *VM) Continue() ([]Event, error) {
	switch m.state {
	case WaitingOnOptionSelection:
		return nil, ErrOptionsPending
	case Stopped:
		if !m.started {
			return nil, ErrNotStarted
		}
		return nil, ErrAlreadyComplete
	}

	var batch []Event
	if m.pc == 0 && m.state == WaitingForContinue && len(m.stack) == 0 {
		batch = append(batch, NodeStartEvent{NodeName: m.node.Name})
	}
	m.state = Running

	for m.state == Running {
		if m.pc >= len(m.node.Instructions) {
			// A node always ends in STOP; running off the end means
			// corrupt bytecode.
			m.reset()
			return batch, fmt.Errorf("program counter ran past the end of node %q", m.node.Name)
		}
		in := m.node.Instructions[m.pc]
		m.logger.Debug("execute", "node", m.node.Name, "pc", m.pc, "op", in.Op.String())
		events, err := m.execute(in)
		batch = append(batch, events...)
		if err != nil {
			m.reset()
			batch = append(batch, DialogueCompleteEvent{})
			return batch, err
		}
	}
	return batch, nil
}

// execute runs one instruction. It advances pc itself so jumps stay in
// charge of control flow.
func (m *VM) execute(in ir.Instruction) ([]Event, error) {
	switch in.Op {
	case ir.OpJumpTo:
		m.pc = in.Dest
		return nil, nil

	case ir.OpJump, ir.OpRunNode:
		name, err := m.popString(in)
		if err != nil {
			return nil, err
		}
		return m.enterNode(name)

	case ir.OpRunLine:
		subs, err := m.popSubstitutions(in, in.Count)
		if err != nil {
			return nil, err
		}
		m.pc++
		m.state = DeliveringContent
		return []Event{LineEvent{LineID: in.Str, Substitutions: subs}}, nil

	case ir.OpRunCommand:
		subs, err := m.popSubstitutions(in, in.Count)
		if err != nil {
			return nil, err
		}
		m.pc++
		m.state = DeliveringContent
		return []Event{CommandEvent{Text: ExpandSubstitutions(in.Str, subs)}}, nil

	case ir.OpAddOption:
		enabled := true
		if in.Flag {
			cond, err := m.pop(in)
			if err != nil {
				return nil, err
			}
			enabled, err = cond.AsBool()
			if err != nil {
				return nil, fmt.Errorf("option condition: %w", err)
			}
		}
		subs, err := m.popSubstitutions(in, in.Count)
		if err != nil {
			return nil, err
		}
		m.options = append(m.options, Option{
			ID:            len(m.options),
			LineID:        in.Str,
			Substitutions: subs,
			Enabled:       enabled,
			destinationPC: in.Dest,
		})
		m.pc++
		return nil, nil

	case ir.OpShowOptions:
		if len(m.options) == 0 {
			return nil, fmt.Errorf("SHOW_OPTIONS with no options added; the program is corrupt")
		}
		m.pc++
		m.state = WaitingOnOptionSelection
		options := make([]Option, len(m.options))
		copy(options, m.options)
		return []Event{OptionsEvent{Options: options}}, nil

	case ir.OpPushString:
		m.push(types.StringValue(in.Str))
		m.pc++
		return nil, nil

	case ir.OpPushFloat:
		m.push(types.NumberValue(in.Float))
		m.pc++
		return nil, nil

	case ir.OpPushBool:
		m.push(types.BoolValue(in.Flag))
		m.pc++
		return nil, nil

	case ir.OpPushNull:
		m.push(types.Null)
		m.pc++
		return nil, nil

	case ir.OpJumpIfFalse:
		cond, err := m.pop(in)
		if err != nil {
			return nil, err
		}
		b, err := cond.AsBool()
		if err != nil {
			return nil, fmt.Errorf("jump condition: %w", err)
		}
		if b {
			m.pc++
		} else {
			m.pc = in.Dest
		}
		return nil, nil

	case ir.OpPop:
		if _, err := m.pop(in); err != nil {
			return nil, err
		}
		m.pc++
		return nil, nil

	case ir.OpCallFunc:
		return nil, m.callFunc(in)

	case ir.OpPushVariable:
		m.push(m.lookupVariable(in.Str))
		m.pc++
		return nil, nil

	case ir.OpStoreVariable:
		value, err := m.peek(in)
		if err != nil {
			return nil, err
		}
		m.storage.SetValue(in.Str, value)
		m.pc++
		return nil, nil

	case ir.OpStop:
		node := m.node.Name
		m.reset()
		return []Event{NodeCompleteEvent{NodeName: node}, DialogueCompleteEvent{}}, nil

	default:
		return nil, fmt.Errorf("invalid instruction %s at %s:%d", in.Op, m.node.Name, m.pc)
	}
}

// enterNode finishes the current node and continues in the named one.
func (m *VM) enterNode(name string) ([]Event, error) {
	events := []Event{NodeCompleteEvent{NodeName: m.node.Name}}
	node, ok := m.program.Node(name)
	if !ok {
		return events, &UnknownNodeError{Name: name, Suggestions: suggest(name, m.program.NodeNames())}
	}
	m.node = node
	m.pc = 0
	m.stack = m.stack[:0]
	events = append(events, NodeStartEvent{NodeName: name})
	return events, nil
}

func (m *VM) callFunc(in ir.Instruction) error {
	fn, ok := m.library.Lookup(in.Str)
	if !ok {
		return &FunctionNotFoundError{Name: in.Str, Suggestions: suggest(in.Str, m.library.Names())}
	}
	arity := len(fn.Params)
	args := make([]types.Value, arity)
	for i := arity - 1; i >= 0; i-- {
		v, err := m.pop(in)
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := fn.Call(args)
	if err != nil {
		return fmt.Errorf("calling %s: %w", in.Str, err)
	}
	m.push(result)
	m.pc++
	return nil
}

// lookupVariable reads through the storage, falling back to the
// program's declared default. Declaration coverage makes a miss on
// both impossible for compiled scripts, but a stale store plus an
// edited program can still get here, so null is returned rather than
// an error.
func (m *VM) lookupVariable(name string) types.Value {
	if v, ok := m.storage.Value(name); ok {
		return v
	}
	if v, ok := m.program.InitialValue(name); ok {
		return v
	}
	return types.Null
}

func (m *VM) push(v types.Value) {
	m.stack = append(m.stack, v)
}

func (m *VM) pop(in ir.Instruction) (types.Value, error) {
	if len(m.stack) == 0 {
		return types.Null, &StackUnderflowError{Node: m.node.Name, PC: m.pc, Op: in.Op.String()}
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *VM) peek(in ir.Instruction) (types.Value, error) {
	if len(m.stack) == 0 {
		return types.Null, &StackUnderflowError{Node: m.node.Name, PC: m.pc, Op: in.Op.String()}
	}
	return m.stack[len(m.stack)-1], nil
}

func (m *VM) popString(in ir.Instruction) (string, error) {
	v, err := m.pop(in)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// popSubstitutions pops count values and returns their textual forms
// in push order.
func (m *VM) popSubstitutions(in ir.Instruction, count int) ([]string, error) {
	if count == 0 {
		return nil, nil
	}
	subs := make([]string, count)
	for i := count - 1; i >= 0; i-- {
		v, err := m.pop(in)
		if err != nil {
			return nil, err
		}
		subs[i] = v.AsString()
	}
	return subs, nil
}

// ExpandSubstitutions replaces {0}, {1}, ... placeholders in text with
// the given values. Hosts use it for unlocalized display; the VM uses
// it to format command text before dispatch.
func ExpandSubstitutions(text string, subs []string) string {
	for i, sub := range subs {
		text = strings.ReplaceAll(text, fmt.Sprintf("{%d}", i), sub)
	}
	return text
}
