package app

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/agent"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/process"
)

var agentCmd = &cobra.Command{
	Use:   "agent <start|stop|status|run>",
	Short: "Control the background sync agent",
	Long: `Control the background agent that keeps every repository synced on its
own interval. 'run' executes the scheduler loop in the foreground and is
what 'start' spawns under the hood.`,
	Args: cobra.ExactArgs(1),
	RunE: agentCmdFunc,
}

func agentCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "start":
		pid, err := agent.Start(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Agent started (pid %d), logging to %s\n", pid, agent.LogFilePath(cfg))
		return nil

	case "stop":
		if err := agent.Stop(); err != nil {
			return err
		}
		fmt.Println("Agent stopped")
		return nil

	case "status":
		if running, pid := agent.Running(); running {
			fmt.Printf("Agent running (pid %d)\n", pid)
		} else {
			fmt.Println("Agent not running")
		}
		return nil

	case "run":
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := process.WriteCurrentPIDFile(agent.DaemonName); err != nil {
			return errors.NewProcessControlError("failed to write PID file", err)
		}
		defer func() {
			_ = process.RemovePIDFile(agent.DaemonName)
		}()

		return agent.New(cfg).Run(ctx)

	default:
		return errors.NewInvalidInputError(fmt.Sprintf("unknown agent action '%s', expected start|stop|status|run", args[0]), nil)
	}
}
