// skilldag — инструмент командной строки для запуска DAG
// из промптов через HTTP API.
//
// Использование:
//
//	skilldag [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	job run -f dag.yaml   Запустить DAG (--async, --input KEY=VALUE)
//	job show ID           Статус и результаты job
//	skills                Каталог skills
//	health                Проверка API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/skilldag/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "skilldag",
		Short:         "skilldag CLI — run prompt DAGs against the skilldag API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("SKILLDAG_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env SKILLDAG_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewSkillsCmd(clientFn, outputFn),
		cli.NewHealthCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if cli.IsRateLimited(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
