package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheBombSquad/MKBViewer/pkg/lz"
)

var decompressCmd = &cobra.Command{
	Use:   "decompress <in.lz> <out>",
	Short: "Unpack an .lz container to a raw stagedef image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if !lz.IsCompressed(data) {
			return fmt.Errorf("%s is not an .lz container", args[0])
		}
		raw, err := lz.Decompress(data)
		if err != nil {
			return err
		}
		log := logger()
		log.Info().
			Int("compressed", len(data)).
			Int("uncompressed", len(raw)).
			Msg("unpacked")
		return os.WriteFile(args[1], raw, 0o644)
	},
}

var compressCmd = &cobra.Command{
	Use:   "compress <in> <out.lz>",
	Short: "Pack a raw stagedef image into an .lz container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		packed, err := lz.Compress(raw)
		if err != nil {
			return err
		}
		log := logger()
		log.Info().
			Int("uncompressed", len(raw)).
			Int("compressed", len(packed)).
			Msg("packed")
		return os.WriteFile(args[1], packed, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(decompressCmd)
	rootCmd.AddCommand(compressCmd)
}
