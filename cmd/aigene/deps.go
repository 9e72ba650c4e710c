package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/aigene/internal/installer"
	"github.com/tsukumogami/aigene/internal/scanner"
)

var depsJSONFlag bool

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect and install the dependencies of generated scripts",
	Long: `Inspect and install the Python packages generated scripts need.

Packages are installed into the private virtual environment. Packages that
fail to install are recorded and offered again at the next launch, or can
be retried with 'aigene deps retry'.`,
}

var depsScanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Print the packages a script needs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := readScript(args[0])
		res := scanner.Scan(code)

		if depsJSONFlag {
			printJSON(scanOutput{
				Requirements:    scanner.Strings(res.Requirements),
				NeedsSystemDeps: scanner.NeedsSystemDeps(code),
				SystemDeps:      installer.SystemDepsGuide(res.Requirements),
				ParseError:      errString(res.ParseErr),
			})
			return
		}

		if res.ParseErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: imports after a syntax error were not scanned: %v\n", res.ParseErr)
		}
		for _, r := range res.Requirements {
			fmt.Println(r)
		}
		for _, line := range installer.SystemDepsGuide(res.Requirements) {
			printInfo(line)
		}
		if scanner.NeedsSystemDeps(code) {
			printInfo("The script declares that it needs system dependencies.")
		}
	},
}

var depsInstallCmd = &cobra.Command{
	Use:   "install <file>",
	Short: "Install the packages a script needs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := readScript(args[0])
		path, err := filepath.Abs(args[0])
		if err != nil {
			path = args[0]
		}

		a := mustLoadApp()
		ctx, stop := interruptible(context.Background())
		defer stop()

		out, err := a.workflow().Prepare(ctx, path, code)
		if err != nil {
			printError(err, nil)
			exitWithCode(exitCodeFor(err))
		}
		if !out.Ready() {
			exitWithCode(ExitPending)
		}
		printInfo("All dependencies are installed.")
	},
}

var depsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Install the recorded pending packages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustLoadApp()
		ctx, stop := interruptible(context.Background())
		defer stop()

		res, err := a.workflow().Resume(ctx)
		if err != nil {
			printError(err, nil)
			exitWithCode(exitCodeFor(err))
		}
		if res == nil {
			printInfo("No pending dependencies.")
			return
		}
		if !res.Done() {
			exitWithCode(ExitInstallFailed)
		}
		printInfof("All pending dependencies of %s are installed.\n", res.Record.ArtifactPath)
	},
}

var depsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded pending packages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustLoadApp()
		rec, err := a.workflow().Status(context.Background())
		if err != nil {
			printError(err, nil)
			exitWithCode(ExitGeneral)
		}

		if depsJSONFlag {
			status := statusOutput{Pending: rec != nil, Requirements: []string{}}
			if rec != nil {
				status.ArtifactPath = rec.ArtifactPath
				status.Requirements = scanner.Strings(rec.Requirements)
				status.CreatedAt = &rec.CreatedAt
			}
			printJSON(status)
			return
		}

		if rec == nil {
			fmt.Println("No pending dependencies.")
			return
		}
		fmt.Printf("Script:  %s\n", rec.ArtifactPath)
		fmt.Printf("Since:   %s\n", rec.CreatedAt.Local().Format(time.DateTime))
		fmt.Println("Pending:")
		for _, r := range rec.Requirements {
			fmt.Printf("  %s\n", r)
		}
	},
}

var depsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the recorded pending packages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustLoadApp()
		if err := a.workflow().Clear(context.Background()); err != nil {
			printError(err, nil)
			exitWithCode(ExitGeneral)
		}
		printInfo("Pending dependencies cleared.")
	},
}

type scanOutput struct {
	Requirements    []string `json:"requirements"`
	NeedsSystemDeps bool     `json:"needs_system_deps"`
	SystemDeps      []string `json:"system_deps,omitempty"`
	ParseError      string   `json:"parse_error,omitempty"`
}

type statusOutput struct {
	Pending      bool       `json:"pending"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	Requirements []string   `json:"requirements"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

func readScript(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitWithCode(ExitUsage)
	}
	return string(data)
}

func mustLoadApp() *app {
	a, err := loadApp()
	if err != nil {
		printError(err, nil)
		exitWithCode(exitCodeFor(err))
	}
	return a
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func init() {
	depsScanCmd.Flags().BoolVar(&depsJSONFlag, "json", false, "Output in JSON format")
	depsStatusCmd.Flags().BoolVar(&depsJSONFlag, "json", false, "Output in JSON format")

	depsCmd.AddCommand(depsScanCmd)
	depsCmd.AddCommand(depsInstallCmd)
	depsCmd.AddCommand(depsRetryCmd)
	depsCmd.AddCommand(depsStatusCmd)
	depsCmd.AddCommand(depsClearCmd)
}
