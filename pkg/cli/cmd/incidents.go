package cmd

import (
	"github.com/spf13/cobra"

	"github.com/LENAX/agentflow/internal/opscopilot"
	"github.com/LENAX/agentflow/pkg/cli/output"
)

func newIncidentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "incidents",
		Short: "列出内置的演示事件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			incidents := opscopilot.Incidents()
			if outputJSON {
				return output.PrintJSON(incidents)
			}
			table := output.NewTable("ID", "SEVERITY", "SERVICE", "CUSTOMER", "TITLE")
			for _, inc := range incidents {
				table.AddRow(inc.ID, inc.SeverityHint, inc.Service, inc.Customer, output.Truncate(inc.Title, 40))
			}
			table.Render()
			return nil
		},
	}
}
