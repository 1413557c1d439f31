package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// GenerateStringTable assigns a line id to every line that lacks an
// explicit #line: tag and fills the table with one StringInfo per
// line. Generated ids are derived from the file stem, node title, and
// a per-node counter, so recompiling the same sources yields the same
// ids.
func GenerateStringTable(state *State, files []*parser.File, table ir.StringTable) {
	for _, file := range files {
		stem := fileStem(file.FileName)
		for _, node := range file.Nodes {
			g := &stringTableGen{
				state: state,
				file:  file,
				node:  node,
				stem:  stem,
				table: table,
			}
			g.block(node.Body)
		}
	}
}

type stringTableGen struct {
	state *State
	file  *parser.File
	node  *parser.NodeDecl
	stem  string
	next  int
	table ir.StringTable
}

func (g *stringTableGen) block(b *parser.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case *parser.LineStmt:
			g.line(s)
		case *parser.ShortcutGroup:
			for _, opt := range s.Options {
				g.line(opt.Line)
				g.block(opt.Body)
			}
		case *parser.IfStmt:
			for _, clause := range s.Clauses {
				g.block(clause.Body)
			}
			g.block(s.ElseBody)
		}
	}
}

func (g *stringTableGen) line(s *parser.LineStmt) {
	if s.LineID == "" {
		s.LineID = fmt.Sprintf("line:%s-%s-%d", g.stem, g.node.Title, g.next)
		g.next++
	}
	if _, taken := g.table[s.LineID]; taken {
		g.state.errorf(types.SyntaxError, g.file, s.Range,
			"line id %q is used more than once", s.LineID)
		return
	}
	metadata := make([]string, 0, len(s.Hashtags))
	for _, tag := range s.Hashtags {
		metadata = append(metadata, tag.Text)
	}
	g.table[s.LineID] = ir.StringInfo{
		Text:       renderLineText(s),
		NodeName:   g.node.Title,
		LineNumber: s.Range.Start.Line,
		FileName:   g.file.FileName,
		Metadata:   metadata,
	}
}

// renderLineText flattens the line's parts into the localizable text,
// replacing each embedded expression with its positional placeholder.
func renderLineText(s *parser.LineStmt) string {
	var b strings.Builder
	if s.Character != "" {
		b.WriteString(s.Character)
		b.WriteString(": ")
	}
	expr := 0
	for _, part := range s.Parts {
		if part.Expr != nil {
			fmt.Fprintf(&b, "{%d}", expr)
			expr++
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func fileStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
