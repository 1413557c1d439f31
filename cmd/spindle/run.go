package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/runtime/vm"
)

func newRunCmd() *cobra.Command {
	var startNode string

	cmd := &cobra.Command{
		Use:   "run <file.yarn>...",
		Short: "Compile and play scripts interactively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := compileFiles(args)
			if err != nil {
				return err
			}
			printDiagnostics(result.Diagnostics)
			if result.Program == nil {
				return fmt.Errorf("compilation failed")
			}
			return play(cmd, result.Program, result.StringTable, startNode)
		},
	}
	cmd.Flags().StringVar(&startNode, "node", "Start", "Node to start from")
	return cmd
}

// play drives a dialogue on the terminal: lines print, option sets
// prompt for a number, and the conventional wait command parks the
// playthrough for its duration.
func play(cmd *cobra.Command, program *ir.Program, table ir.StringTable, start string) error {
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	dialogue := vm.NewDialogue(program)
	if err := dialogue.SetNode(start); err != nil {
		return err
	}

	for dialogue.IsActive() {
		events, err := dialogue.Continue()
		if err != nil {
			return err
		}
		for _, event := range events {
			switch e := event.(type) {
			case vm.LineEvent:
				fmt.Fprintln(out, renderLine(table, e.LineID, e.Substitutions))
			case vm.OptionsEvent:
				for _, opt := range e.Options {
					marker := " "
					if !opt.Enabled {
						marker = "x"
					}
					fmt.Fprintf(out, "%d) [%s] %s\n", opt.ID+1, marker,
						renderLine(table, opt.LineID, opt.Substitutions))
				}
				choice, err := readChoice(in, out, len(e.Options))
				if err != nil {
					return err
				}
				if err := dialogue.SelectOption(choice); err != nil {
					return err
				}
			case vm.CommandEvent:
				if e.Name() == "wait" {
					if params := e.Parameters(); len(params) > 0 {
						if seconds, err := strconv.ParseFloat(params[0], 64); err == nil {
							time.Sleep(time.Duration(seconds * float64(time.Second)))
						}
					}
					continue
				}
				fmt.Fprintf(out, "<<%s>>\n", e.Text)
			case vm.DialogueCompleteEvent:
				fmt.Fprintln(out, "-- complete --")
			}
		}
	}
	return nil
}

func renderLine(table ir.StringTable, lineID string, subs []string) string {
	info, ok := table[lineID]
	if !ok {
		return lineID
	}
	return vm.ExpandSubstitutions(info.Text, subs)
}

func readChoice(in *bufio.Scanner, out io.Writer, count int) (int, error) {
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return 0, fmt.Errorf("input closed")
		}
		text := strings.TrimSpace(in.Text())
		n, err := strconv.Atoi(text)
		if err == nil && n >= 1 && n <= count {
			return n - 1, nil
		}
		fmt.Fprintf(out, "enter a number between 1 and %d\n", count)
	}
}
