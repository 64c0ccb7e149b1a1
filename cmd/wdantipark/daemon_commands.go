package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundsrc/wdantiparkd/internal/controller"
	"github.com/soundsrc/wdantiparkd/internal/daemonctl"
	"github.com/soundsrc/wdantiparkd/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the wdantiparkd daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the wdantiparkd daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the wdantiparkd daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and drive protection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			running, _, err := daemonctl.ProcessInfo(ctx.socketPath())
			if err != nil || !running {
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "Not running (run `wdantipark start`)", colorize))
				return nil
			}

			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return fmt.Errorf("query daemon status: %w", err)
				}
				renderStatus(stdout, status, colorize)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(stdout io.Writer, status *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Device", statusInfo, status.Device, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Touch file", statusInfo, status.TouchFile, colorize))
	hotplugKind := statusWarn
	hotplugDetail := "Netlink unavailable (device events not logged)"
	if status.HotplugMonitoring {
		hotplugKind = statusOK
		hotplugDetail = "Netlink monitoring active"
	}
	fmt.Fprintln(stdout, renderStatusLine("Hotplug events", hotplugKind, hotplugDetail, colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Drive Protection", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := [][]string{
		{"State", displayState(status.State)},
		{"Anti-park timeout", controller.FormatDuration(time.Duration(status.CurrentTimeoutSecs) * time.Second)},
		{"Uptime", controller.FormatDuration(time.Duration(status.UptimeSecs) * time.Second)},
		{"Idle time", controller.FormatDuration(time.Duration(status.IdleSecs) * time.Second)},
		{"Idle percent", fmt.Sprintf("%d%%", status.IdlePercent)},
		{"Load cycles (est.)", fmt.Sprintf("%d", status.LoadCycleEstimate)},
		{"Load cycles / hour", fmt.Sprintf("%d", status.CyclesPerHour)},
	}
	table := renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(stdout, table)
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
