// Package compiler is the front door of the compilation pipeline:
// source files in, program plus string table plus declarations plus
// diagnostics out.
//
// Compilation never throws. Every stage accumulates diagnostics, and a
// Program is produced only when no file reported an error. Given the
// same inputs the compiler yields byte-identical output; everything
// that iterates a map does so in a defined order.
package compiler

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/library"
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/analysis"
	"github.com/spindle-lang/spindle/runtime/codegen"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// Mode selects how far the pipeline runs.
type Mode int

const (
	// FullCompilation runs every stage and produces a Program.
	FullCompilation Mode = iota
	// DeclarationsOnly stops after declaration collection.
	DeclarationsOnly
	// StringsOnly stops after string table extraction.
	StringsOnly
)

// File is one source file to compile.
type File struct {
	FileName string
	Source   string
}

// Compilation is everything a compile run produces.
type Compilation struct {
	// Program is nil unless the mode was FullCompilation and no file
	// reported an error.
	Program      *ir.Program
	StringTable  ir.StringTable
	Declarations []types.Declaration
	Diagnostics  []types.Diagnostic
}

// Compiler gathers inputs fluently, then Compile runs the pipeline.
type Compiler struct {
	files        []File
	library      *library.Library
	declarations []types.Declaration
	mode         Mode
}

func New() *Compiler {
	return &Compiler{library: library.New()}
}

// AddFile queues a source file for compilation.
func (c *Compiler) AddFile(f File) *Compiler {
	c.files = append(c.files, f)
	return c
}

// ReadFile queues a file from disk.
func (c *Compiler) ReadFile(path string) (*Compiler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading %s: %w", path, err)
	}
	return c.AddFile(File{FileName: path, Source: string(data)}), nil
}

// ExtendLibrary merges the host's function registrations into the
// compile, making their signatures available to type checking.
func (c *Compiler) ExtendLibrary(lib *library.Library) *Compiler {
	c.library.Extend(lib)
	return c
}

// DeclareVariable adds a caller-supplied declaration.
func (c *Compiler) DeclareVariable(d types.Declaration) *Compiler {
	c.declarations = append(c.declarations, d)
	return c
}

// WithMode sets the compilation mode; the default is FullCompilation.
func (c *Compiler) WithMode(mode Mode) *Compiler {
	c.mode = mode
	return c
}

// Compile runs the pipeline over the queued files.
func (c *Compiler) Compile() *Compilation {
	result := &Compilation{StringTable: make(ir.StringTable)}

	// Lexing and parsing are independent per file; fan them out. All
	// later passes are sequential so diagnostics and output stay in
	// file order regardless of scheduling.
	parsed := make([]*parser.File, len(c.files))
	fileDiags := make([][]types.Diagnostic, len(c.files))
	var g errgroup.Group
	for i, f := range c.files {
		i, f := i, f
		g.Go(func() error {
			parsed[i], fileDiags[i] = parser.Parse(f.FileName, f.Source)
			return nil
		})
	}
	_ = g.Wait()
	for _, diags := range fileDiags {
		result.Diagnostics = append(result.Diagnostics, diags...)
	}

	state := analysis.NewState()
	analysis.RegisterInitialDeclarations(state, c.declarations, library.Standard(), c.library)
	analysis.CollectDeclarations(state, parsed)
	if c.mode == DeclarationsOnly {
		return c.finish(result, state)
	}

	analysis.GenerateStringTable(state, parsed, result.StringTable)
	analysis.TagLastLines(parsed, result.StringTable)
	if c.mode == StringsOnly {
		return c.finish(result, state)
	}

	analysis.CheckTypes(state, parsed)
	nodeNames := c.checkNodes(result, parsed)
	c.checkJumpTargets(result, parsed, nodeNames)

	if types.HasErrors(append(result.Diagnostics, state.Diagnostics...)) {
		return c.finish(result, state)
	}

	nodes := make(map[string]*ir.Node)
	for _, file := range parsed {
		for _, decl := range file.Nodes {
			node, diags := codegen.EmitNode(file, decl)
			result.Diagnostics = append(result.Diagnostics, diags...)
			nodes[node.Name] = node
		}
	}
	initial := make(map[string]types.Value)
	for _, d := range state.Declarations.All() {
		if d.IsVariable() {
			initial[d.Name] = d.DefaultValue
		}
	}
	if !types.HasErrors(result.Diagnostics) {
		result.Program = ir.NewProgram(nodes, initial)
	}
	return c.finish(result, state)
}

// finish folds the analysis state into the result and filters the
// exported declarations down to user-visible ones.
func (c *Compiler) finish(result *Compilation, state *analysis.State) *Compilation {
	result.Diagnostics = append(result.Diagnostics, state.Diagnostics...)
	for _, d := range state.Declarations.All() {
		if d.IsVariable() {
			result.Declarations = append(result.Declarations, d)
		}
	}
	return result
}

// checkNodes verifies node names are unique across every compiled file
// and returns the set of names.
func (c *Compiler) checkNodes(result *Compilation, parsed []*parser.File) map[string]bool {
	names := make(map[string]bool)
	seen := make(map[string]string) // name -> file that declared it
	for _, file := range parsed {
		for _, decl := range file.Nodes {
			if decl.Title == "" {
				continue
			}
			if firstFile, dup := seen[decl.Title]; dup {
				result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
					Kind:     types.DuplicateNode,
					Severity: types.SeverityError,
					Message: fmt.Sprintf("node %q is already declared in %s",
						decl.Title, firstFile),
					FileName:     file.FileName,
					Range:        decl.TitleRange,
					ContextLines: types.ContextAround(file.Source, decl.TitleRange.Start),
				})
				continue
			}
			seen[decl.Title] = file.FileName
			names[decl.Title] = true
		}
	}
	return names
}

// checkJumpTargets flags statically-known jump targets that name no
// node, suggesting close matches.
func (c *Compiler) checkJumpTargets(result *Compilation, parsed []*parser.File, nodeNames map[string]bool) {
	sorted := make([]string, 0, len(nodeNames))
	for name := range nodeNames {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, file := range parsed {
		for _, decl := range file.Nodes {
			walkJumps(decl.Body, func(jump *parser.JumpStmt) {
				if jump.Target == "" || nodeNames[jump.Target] {
					return
				}
				msg := fmt.Sprintf("jump target %q does not exist", jump.Target)
				if suggestion := closestMatch(jump.Target, sorted); suggestion != "" {
					msg = fmt.Sprintf("%s; did you mean %q?", msg, suggestion)
				}
				result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
					Kind:         types.UnknownNode,
					Severity:     types.SeverityError,
					Message:      msg,
					FileName:     file.FileName,
					Range:        jump.Range,
					ContextLines: types.ContextAround(file.Source, jump.Range.Start),
				})
			})
		}
	}
}

func walkJumps(b *parser.Block, visit func(*parser.JumpStmt)) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case *parser.JumpStmt:
			visit(s)
		case *parser.IfStmt:
			for _, clause := range s.Clauses {
				walkJumps(clause.Body, visit)
			}
			walkJumps(s.ElseBody, visit)
		case *parser.ShortcutGroup:
			for _, opt := range s.Options {
				walkJumps(opt.Body, visit)
			}
		}
	}
}

// closestMatch returns the candidate within a small edit distance of
// target, if any.
func closestMatch(target string, candidates []string) string {
	best := ""
	bestDist := 4
	for _, candidate := range candidates {
		d := fuzzy.LevenshteinDistance(strings.ToLower(target), strings.ToLower(candidate))
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
