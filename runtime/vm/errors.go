package vm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// API misuse errors. These are returned, never panicked; the machine
// stays in a consistent state afterwards.
var (
	// ErrNotStarted means Continue was called before SetNode.
	ErrNotStarted = errors.New("dialogue has not been started; call SetNode first")
	// ErrAlreadyComplete means Continue was called after the dialogue
	// stopped.
	ErrAlreadyComplete = errors.New("dialogue is already complete")
	// ErrOptionsPending means Continue was called while the machine
	// waits for SelectOption.
	ErrOptionsPending = errors.New("an option must be selected before continuing")
	// ErrNoOptions means SelectOption was called with no option set
	// pending.
	ErrNoOptions = errors.New("no options are currently pending")
)

// UnknownNodeError reports a start or jump against a node the program
// does not contain.
type UnknownNodeError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownNodeError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("unknown node %q; did you mean %q?", e.Name, e.Suggestions[0])
	}
	return fmt.Sprintf("unknown node %q", e.Name)
}

// FunctionNotFoundError reports a CALL_FUNC against an unregistered
// function.
type FunctionNotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *FunctionNotFoundError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("function %q is not registered; did you mean %q?", e.Name, e.Suggestions[0])
	}
	return fmt.Sprintf("function %q is not registered", e.Name)
}

// IndexOutOfRangeError reports an option selection outside the
// delivered set.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("option index %d is out of range (have %d options)", e.Index, e.Count)
}

// StackUnderflowError indicates broken bytecode: an instruction popped
// more values than were pushed. This is fatal for the dialogue.
type StackUnderflowError struct {
	Node string
	PC   int
	Op   string
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("stack underflow at %s:%d (%s); the program is corrupt", e.Node, e.PC, e.Op)
}

// suggest ranks candidates by edit distance and keeps the close ones.
func suggest(name string, candidates []string) []string {
	type ranked struct {
		name string
		dist int
	}
	var close []ranked
	for _, candidate := range candidates {
		d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(candidate))
		if d <= 3 {
			close = append(close, ranked{candidate, d})
		}
	}
	sort.Slice(close, func(i, j int) bool {
		if close[i].dist != close[j].dist {
			return close[i].dist < close[j].dist
		}
		return close[i].name < close[j].name
	})
	if len(close) > 3 {
		close = close[:3]
	}
	out := make([]string, len(close))
	for i, r := range close {
		out[i] = r.name
	}
	return out
}
