package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/aigene/internal/selfupdate"
)

var updateJSONFlag bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for and install aigene updates",
	Long: `Check for and install aigene updates.

An update downloads a bundle, unpacks it, and copies its files over the
installation. Files in use by the running program are recorded and
replaced the next time aigene starts.`,
}

var updateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a newer version is available",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustLoadApp()
		checker, err := a.checker()
		if err != nil {
			printError(err, nil)
			exitWithCode(exitCodeFor(err))
		}

		info, ok := checker.Check(context.Background())
		if !ok {
			printError(fmt.Errorf("could not determine the latest version"), nil)
			exitWithCode(ExitNetwork)
		}

		if updateJSONFlag {
			printJSON(info)
			return
		}
		fmt.Printf("Current version: %s\n", info.Current)
		fmt.Printf("Latest version:  %s\n", info.Latest)
		switch {
		case !info.Available:
			fmt.Println("aigene is up to date.")
		case !info.CanDownload:
			fmt.Printf("A new version is being prepared (server has %s).\n", info.ServerVersion)
		default:
			fmt.Println("A new version is available. Run 'aigene update apply' to install it.")
		}
	},
}

var updateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Download and install the latest version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustLoadApp()
		ctx, stop := interruptible(context.Background())
		defer stop()

		checker, err := a.checker()
		if err != nil {
			printError(err, nil)
			exitWithCode(exitCodeFor(err))
		}
		info, ok := checker.Check(ctx)
		if !ok {
			printError(fmt.Errorf("could not determine the latest version"), nil)
			exitWithCode(ExitNetwork)
		}
		if !info.Available {
			printInfo("aigene is up to date.")
			return
		}
		if !info.CanDownload {
			printInfof("A new version is being prepared (server has %s); try again later.\n", info.ServerVersion)
			return
		}

		printInfof("Updating %s -> %s\n", info.Current, info.Latest)
		res, err := a.applyUpdate(ctx, info)
		reportUpdate(a, res, err)
		if err != nil {
			exitWithCode(ExitUpdateFailed)
		}
	},
}

var updateFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Finish an update left pending by a previous run",
	Long: `Copy the files a previous update could not replace while aigene was
running, then remove the staging directory. This also happens
automatically at every launch.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustLoadApp()
		if updateJSONFlag {
			a.out = io.Discard
		}
		outcome, err := a.finalizer().Finalize(context.Background())
		if err != nil {
			printError(err, nil)
			exitWithCode(ExitUpdateFailed)
		}

		if updateJSONFlag {
			printJSON(finalizeOutput{
				Status: outcome.Status.String(),
				Copied: outcome.Copied,
				Failed: len(outcome.Failed),
			})
		} else {
			// Applied updates are reported by the finalizer itself.
			switch outcome.Status {
			case selfupdate.FinalizeNothing:
				fmt.Println("No pending update.")
			case selfupdate.FinalizeDiscarded, selfupdate.FinalizeStale:
				fmt.Printf("Pending update %s.\n", outcome.Status)
			}
		}
		if len(outcome.Failed) > 0 {
			exitWithCode(ExitUpdateFailed)
		}
	},
}

type finalizeOutput struct {
	Status string   `json:"status"`
	Copied []string `json:"copied"`
	Failed int      `json:"failed"`
}

func init() {
	updateCheckCmd.Flags().BoolVar(&updateJSONFlag, "json", false, "Output in JSON format")
	updateFinalizeCmd.Flags().BoolVar(&updateJSONFlag, "json", false, "Output in JSON format")

	updateCmd.AddCommand(updateCheckCmd)
	updateCmd.AddCommand(updateApplyCmd)
	updateCmd.AddCommand(updateFinalizeCmd)
}
