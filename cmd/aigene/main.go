package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/aigene/internal/buildinfo"
	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/prompt"
)

// Global flags
var (
	quietFlag         bool
	verboseFlag       bool
	debugFlag         bool
	noUpdateCheckFlag bool
	yesFlag           bool
)

var rootCmd = &cobra.Command{
	Use:   "aigene",
	Short: "Chat with an LLM to generate, save and run Python scripts",
	Long: `aigene is a terminal assistant that turns requests into Python scripts.

Generated scripts are saved in the code library next to the program and
run in a private Python virtual environment. Their dependencies are
installed automatically; anything that fails to install is remembered and
retried on the next launch.

Started without a subcommand, aigene finishes any interrupted update,
checks for a new version, offers to install pending dependencies, and
then opens the chat.`,
	Version:       buildinfo.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
		if cmd != updateFinalizeCmd {
			finalizeOnLaunch()
		}
	},
	Run: runSession,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show only errors")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show informational logs")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug logs")
	rootCmd.Flags().BoolVar(&noUpdateCheckFlag, "no-update-check", false, "Skip the update check at launch")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Answer yes to launch prompts")

	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitWithCode(ExitUsage)
	}
}

// finalizeOnLaunch completes an update the previous run left pending,
// before anything else reads the installation. Progress goes to stderr so
// JSON output stays clean.
func finalizeOnLaunch() {
	a, err := loadApp()
	if err != nil {
		return
	}
	a.out = os.Stderr
	a.finalize(context.Background())
}

// initLogger installs the stderr logger at the level chosen by flags and
// environment.
func initLogger() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: determineLogLevel()})
	log.SetDefault(log.New(handler))
}

// determineLogLevel picks the log level. Flags win over environment
// variables; debug wins over verbose, and verbose over quiet.
func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	case isTruthy(os.Getenv("AIGENE_DEBUG")):
		return slog.LevelDebug
	case isTruthy(os.Getenv("AIGENE_VERBOSE")):
		return slog.LevelInfo
	case isTruthy(os.Getenv("AIGENE_QUIET")):
		return slog.LevelError
	}
	return slog.LevelWarn
}

// runSession is the interactive launch: finalize, update check, pending
// dependencies, then the chat loop.
func runSession(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		printError(err, nil)
		exitWithCode(exitCodeFor(err))
	}

	in := bufio.NewReader(os.Stdin)
	var p prompt.Prompter = &prompt.InteractivePrompter{In: in, Out: os.Stdout}
	if yesFlag {
		p = prompt.AutoApprovePrompter{}
	}

	if !noUpdateCheckFlag && a.user.UpdateCheck {
		a.launchUpdateCheck(ctx, p)
	}

	a.offerPendingDeps(ctx, p)

	s, err := a.newSession(ctx, in, p)
	if err != nil {
		_, ectx, _ := a.llmConfig()
		printError(err, ectx)
		exitWithCode(exitCodeFor(err))
	}
	defer s.close()

	if err := s.loop(ctx); err != nil {
		printError(err, nil)
		exitWithCode(ExitGeneral)
	}
}
