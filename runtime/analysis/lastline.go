package analysis

import (
	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// TagLastLines annotates every line that immediately precedes an
// option set in the same block with the lastline metadata tag. Runs
// after GenerateStringTable, which assigns the line ids the tags hang
// off.
//
// Adjacency is strict: any statement between the line and the option
// group, including a set or a command, breaks it. The walk recurses
// into option bodies and if bodies, and an if block that is directly
// followed by an option group passes the adjacency down to the last
// line of each of its branches.
func TagLastLines(files []*parser.File, table ir.StringTable) {
	for _, file := range files {
		for _, node := range file.Nodes {
			tagBlock(node.Body, table, false)
		}
	}
}

// tagBlock walks one block. optionsFollow is set when the enclosing
// construct is immediately followed by an option group, which makes
// this block's trailing line count as "before options".
func tagBlock(b *parser.Block, table ir.StringTable, optionsFollow bool) {
	if b == nil {
		return
	}
	for i, stmt := range b.Statements {
		followedByOptions := false
		if i+1 < len(b.Statements) {
			_, followedByOptions = b.Statements[i+1].(*parser.ShortcutGroup)
		}
		last := i == len(b.Statements)-1

		switch s := stmt.(type) {
		case *parser.LineStmt:
			if followedByOptions || (last && optionsFollow) {
				tagLine(s, table)
			}
		case *parser.ShortcutGroup:
			for _, opt := range s.Options {
				tagBlock(opt.Body, table, false)
			}
		case *parser.IfStmt:
			inherit := followedByOptions || (last && optionsFollow)
			for _, clause := range s.Clauses {
				tagBlock(clause.Body, table, inherit)
			}
			tagBlock(s.ElseBody, table, inherit)
		}
	}
}

func tagLine(s *parser.LineStmt, table ir.StringTable) {
	info, ok := table[s.LineID]
	if !ok || info.HasTag(ir.LastLineTag) {
		return
	}
	info.Metadata = append(info.Metadata, ir.LastLineTag)
	table[s.LineID] = info
}
