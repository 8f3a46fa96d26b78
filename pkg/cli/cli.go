// Package cli provides the command-line interface for flowctl.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "1.0.1"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform to run on (ios, android, web)",
		EnvVars: []string{"FLOWCTL_PLATFORM"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device ID to run on (can be comma-separated)",
		EnvVars: []string{"FLOWCTL_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (uiautomator2, appium)",
		Value:   "uiautomator2",
		EnvVars: []string{"FLOWCTL_DRIVER"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL (for appium driver)",
		Value:   "http://127.0.0.1:4723",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "caps",
		Usage:   "Path to Appium capabilities JSON file",
		EnvVars: []string{"APPIUM_CAPS"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"FLOWCTL_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "app-file",
		Usage:   "App binary (.apk, .app, .ipa) to install before testing",
		EnvVars: []string{"FLOWCTL_APP_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
	&cli.StringFlag{
		Name:    "team-id",
		Usage:   "Apple Development Team ID for WDA code signing (iOS)",
		EnvVars: []string{"FLOWCTL_TEAM_ID", "DEVELOPMENT_TEAM"},
	},
	&cli.StringFlag{
		Name:    "start-emulator",
		Usage:   "Start emulator with AVD name (e.g., Pixel_7_API_33)",
		EnvVars: []string{"FLOWCTL_START_EMULATOR"},
	},
	&cli.BoolFlag{
		Name:    "auto-start-emulator",
		Usage:   "Auto-start an emulator if no devices found",
		EnvVars: []string{"FLOWCTL_AUTO_START_EMULATOR"},
	},
	&cli.BoolFlag{
		Name:    "shutdown-after",
		Value:   true,
		Usage:   "Shutdown emulators started by flowctl after tests",
		EnvVars: []string{"FLOWCTL_SHUTDOWN_AFTER"},
	},
	&cli.IntFlag{
		Name:  "boot-timeout",
		Value: 180,
		Usage: "Emulator boot timeout in seconds",
	},
}

// Execute runs the CLI.
func Execute() {
	// Merge global flags and test command flags for root-level execution
	allFlags := append(GlobalFlags, testCommand.Flags...)

	app := &cli.App{
		Name:      "flowctl",
		Usage:     "flow orchestrator for mobile and web apps",
		Version:   Version,
		ArgsUsage: "<flow-file-or-folder>...",
		Description: `Flow Orchestrator executes flow files for automated testing
of iOS, Android, and web applications.

Examples:
  # Run with default UIAutomator2 driver
  flowctl flow.yaml
  flowctl flows/ -e USER=test

  # Run with Appium driver
  flowctl --driver appium flow.yaml
  flowctl --driver appium --caps caps.json flow.yaml

  # Run on cloud providers
  flowctl --driver appium --appium-url "https://your-cloud-hub/wd/hub" --caps caps.json flow.yaml

  # Run in parallel on multiple devices
  flowctl --platform android --parallel 2 flows/`,
		Flags:  allFlags,
		Action: testCommand.Action,
		// Keep test command for backward compatibility
		Commands: []*cli.Command{
			testCommand,
			wdaCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
