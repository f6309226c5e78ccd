package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheBombSquad/MKBViewer/pkg/document"
	"github.com/TheBombSquad/MKBViewer/pkg/scene"
)

var infoShowScene bool

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Print a summary of a stagedef file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		doc := document.New(document.WithLogger(logger()))
		if err := doc.Open(cmd.Context(), data); err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		s := doc.Stage()

		order := "big-endian"
		if s.ByteOrder == binary.LittleEndian {
			order = "little-endian"
		}
		fmt.Printf("%s: %s stagedef, %s", args[0], s.Game, order)
		if doc.Compressed() {
			fmt.Print(", .lz container")
		}
		fmt.Println()

		fmt.Printf("  start position:    %v\n", s.Start.Position)
		fmt.Printf("  fallout level:     %.2f\n", s.FalloutLevel)
		fmt.Printf("  goals:             %d\n", len(s.Goals))
		fmt.Printf("  bumpers:           %d\n", len(s.Bumpers))
		fmt.Printf("  jamabars:          %d\n", len(s.Jamabars))
		fmt.Printf("  bananas:           %d\n", len(s.Bananas))
		fmt.Printf("  fallout volumes:   %d\n", len(s.FalloutVolumes))
		fmt.Printf("  background models: %d\n", len(s.BackgroundModels))
		fmt.Printf("  collision headers: %d\n", len(s.CollisionHeaders))
		for i, h := range s.CollisionHeaders {
			fmt.Printf("    [%d] %d triangles, %dx%d grid, animation %d\n",
				i, len(h.Triangles), h.GridStepXCount, h.GridStepZCount, h.AnimationID)
		}

		if !infoShowScene {
			return nil
		}
		g, err := scene.Build(s)
		if err != nil {
			return fmt.Errorf("build scene: %w", err)
		}
		fmt.Printf("  scene: %d nodes, %d meshes, %d materials\n",
			len(g.Nodes), len(g.Meshes), len(g.Materials))
		for _, m := range g.Materials {
			fmt.Printf("    material %q\n", m.Name)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoShowScene, "scene", false, "also build and summarize the scene graph")
	rootCmd.AddCommand(infoCmd)
}
