package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

var stylesOutput string

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List the supported music styles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries := styles.Default().Entries()
		if stylesOutput != "table" {
			type row struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description"`
				BPMRange    []int  `json:"bpm_range"`
			}
			rows := make([]row, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, row{string(e.ID), e.Name, e.Description, []int{e.Tempo.Min, e.Tempo.Max}})
			}
			return writeOutput(cmd.OutOrStdout(), stylesOutput, rows)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tBPM\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%s\n", e.ID, e.Name, e.Tempo.Min, e.Tempo.Max, e.Description)
		}
		return tw.Flush()
	},
}

func init() {
	stylesCmd.Flags().StringVarP(&stylesOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(stylesCmd)
}
