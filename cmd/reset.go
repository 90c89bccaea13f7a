package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the index, snapshot, graph and conversation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Session reset.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
