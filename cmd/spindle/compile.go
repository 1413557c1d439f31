package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/compiler"
)

func newCompileCmd() *cobra.Command {
	var output string
	var stringsOut string

	cmd := &cobra.Command{
		Use:   "compile <file.yarn>...",
		Short: "Compile scripts to a program file",
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
			out, err := os.Create(output)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := ir.WriteProgram(out, result.Program); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			if stringsOut != "" {
				f, err := os.Create(stringsOut)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := result.StringTable.WriteCSV(f); err != nil {
					return fmt.Errorf("writing %s: %w", stringsOut, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d node(s) to %s\n",
				result.Program.NodeCount(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "program.spindle", "Output program file")
	cmd.Flags().StringVar(&stringsOut, "strings", "", "Also write the string table as CSV")
	return cmd
}

func newStringsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strings <file.yarn>...",
		Short: "Extract the string table as CSV on stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := compileFiles(args, compiler.StringsOnly)
			if err != nil {
				return err
			}
			printDiagnostics(result.Diagnostics)
			if types.HasErrors(result.Diagnostics) {
				return fmt.Errorf("compilation failed")
			}
			return result.StringTable.WriteCSV(cmd.OutOrStdout())
		},
	}
}

func compileFiles(paths []string, mode ...compiler.Mode) (*compiler.Compilation, error) {
	c := compiler.New()
	for _, path := range paths {
		if _, err := c.ReadFile(path); err != nil {
			return nil, err
		}
	}
	if len(mode) > 0 {
		c.WithMode(mode[0])
	}
	return c.Compile(), nil
}

func printDiagnostics(diags []types.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", d.Severity, d.Error())
	}
}
