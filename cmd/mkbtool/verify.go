package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheBombSquad/MKBViewer/pkg/lz"
	"github.com/TheBombSquad/MKBViewer/pkg/stagedef"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check that a stagedef re-encodes byte-identically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		raw := data
		if lz.IsCompressed(data) {
			if raw, err = lz.Decompress(data); err != nil {
				return err
			}
		}

		s, err := stagedef.Decode(cmd.Context(), raw)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		out, err := stagedef.Encode(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		if bytes.Equal(out, raw) {
			fmt.Printf("%s: OK, %d bytes round-trip byte-identical\n", args[0], len(raw))
			return nil
		}
		if len(out) != len(raw) {
			return fmt.Errorf("round trip changed size: %d -> %d bytes", len(raw), len(out))
		}
		for i := range raw {
			if raw[i] != out[i] {
				return fmt.Errorf("round trip differs at offset 0x%x", i)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
