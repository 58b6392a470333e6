package main

import (
	"github.com/spf13/cobra"

	"github.com/gotrs-io/mailgate/internal/config"
	"github.com/gotrs-io/mailgate/internal/runner"
	"github.com/gotrs-io/mailgate/internal/runner/tasks"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one scan pass over all confirmed servers and folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return a.driver.FetchAll(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway on its cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		registry := runner.NewTaskRegistry()
		registry.Register(tasks.NewFetchMailTask(a.driver, config.Get().Fetch))
		return runner.NewRunner(registry).Start(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(runCmd)
}
