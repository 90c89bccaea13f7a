package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/engine"
)

var flagNoAgent bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the indexed codebase",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		if flagNoAgent {
			opts.UseAgent = false
		}
		e, err := engine.New(opts, engine.Deps{})
		if err != nil {
			return err
		}
		defer e.Close()

		ans, err := e.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printAnswer(ans)
		return nil
	},
}

func printAnswer(ans *engine.Answer) {
	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range ans.Sources {
			fmt.Printf("  %s\n", s)
		}
	}
	var notes []string
	if ans.Cached {
		notes = append(notes, "cached")
	}
	if ans.UsedAgent {
		notes = append(notes, "agent")
	}
	notes = append(notes, ans.Model)
	fmt.Printf("\n[%s]\n", strings.Join(notes, ", "))
}

func init() {
	askCmd.Flags().BoolVar(&flagNoAgent, "no-agent", false, "answer from a single retrieval pass instead of the tool loop")
	rootCmd.AddCommand(askCmd)
}
