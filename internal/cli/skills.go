package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSkillsCmd создаёт команду вывода каталога skills.
func NewSkillsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "List skills available to DAG nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			skills, err := client.ListSkills(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "DESCRIPTION"}
			rows := make([][]string, len(skills))
			for i, s := range skills {
				rows[i] = []string{s.Name, truncate(s.Description, 80)}
			}

			out.Print(headers, rows, skills)
			return nil
		},
	}
}

// NewHealthCmd создаёт команду проверки API.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			broker := health.Broker
			if broker == "" {
				broker = "-"
			}
			out.Print(
				[]string{"STATUS", "UPTIME", "BROKER"},
				[][]string{{health.Status, health.Uptime, broker}},
				health,
			)
			if health.Status != "ok" {
				return fmt.Errorf("api status: %s", health.Status)
			}
			return nil
		},
	}
}
