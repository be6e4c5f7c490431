package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для запуска и просмотра jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Run and inspect DAG jobs",
	}

	cmd.AddCommand(
		newJobRunCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var inputs []string
	var async bool
	var wait bool
	var showOutputs bool

	cmd := &cobra.Command{
		Use:   "run -f FILE",
		Short: "Run a DAG from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req, err := LoadDAGFile(file)
			if err != nil {
				return err
			}

			extra, err := ParseInputs(inputs)
			if err != nil {
				return err
			}
			req.MergeInputs(extra)

			job, err := client.RunJob(cmd.Context(), *req, async)
			if err != nil {
				return err
			}

			if async {
				out.Success(fmt.Sprintf("Job accepted: %s", job.ID))
				if !wait {
					out.Job(job, false)
					return nil
				}
				job, err = client.WaitJob(cmd.Context(), job.ID, time.Second)
				if err != nil {
					return err
				}
			}

			out.Job(job, showOutputs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "DAG file (.yaml, .yml or .json; - for stdin)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the job and return immediately")
	cmd.Flags().BoolVar(&wait, "wait", false, "With --async, poll until the job finishes")
	cmd.Flags().BoolVar(&showOutputs, "outputs", true, "Print node outputs after the table")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showOutputs bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show job status and node results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Job(job, showOutputs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showOutputs, "outputs", false, "Print node outputs after the table")

	return cmd
}
