package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TheBombSquad/MKBViewer/pkg/document"
)

var setOutput string

var setCmd = &cobra.Command{
	Use:   "set <file> <path> <value>",
	Short: "Edit one field and write the file back",
	Long: `Edits a single field addressed by path and re-encodes the file,
preserving the layout of everything unedited.

Examples:
  mkbtool set ST101.lz falloutLevel -- -30
  mkbtool set stage.raw "goals[0].type" 2
  mkbtool set stage.raw "modelNames[0]" NEW_NAME -o edited.raw`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, path, value := args[0], args[1], args[2]

		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		doc := document.New(document.WithLogger(logger()))
		if err := doc.Open(cmd.Context(), data); err != nil {
			return fmt.Errorf("open %s: %w", file, err)
		}

		if err := doc.SetField(path, parseValue(value)); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
		out, err := doc.Save(cmd.Context())
		if err != nil {
			return err
		}

		target := setOutput
		if target == "" {
			target = file
		}
		if err := os.WriteFile(target, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("%s: %s = %s (%d bytes)\n", target, path, value, len(out))
		return nil
	},
}

// parseValue reads numbers as numbers and leaves anything else a string;
// string-typed fields reject numeric values on their own.
func parseValue(s string) any {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

func init() {
	setCmd.Flags().StringVarP(&setOutput, "output", "o", "", "write to this file instead of in place")
	rootCmd.AddCommand(setCmd)
}
