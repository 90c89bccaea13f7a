package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <descriptor>",
	Short: "Index a codebase from a directory, zip archive, or GitHub repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Printf("Indexing %s...\n", args[0])
		start := time.Now()

		stats, err := e.Index(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s (%s)\n", time.Since(start).Round(time.Millisecond), stats.Handler)
		fmt.Printf("  Files:   %d total, %d indexed, %d unchanged, %d removed\n",
			stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped, stats.FilesDeleted)
		fmt.Printf("  Chunks:  %d\n", stats.Chunks)
		fmt.Printf("  Graph:   %d nodes, %d edges\n", stats.Graph.Nodes, stats.Graph.Edges)
		if stats.Incremental {
			fmt.Println("  Mode:    incremental")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
