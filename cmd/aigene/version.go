package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/aigene/internal/buildinfo"
	"github.com/tsukumogami/aigene/internal/selfupdate"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := buildinfo.Read()
		fmt.Printf("aigene %s\n", info.Version)
		if info.Revision != "" {
			fmt.Printf("  revision: %s\n", info.Revision)
		}

		a, err := loadApp()
		if err != nil {
			return
		}
		if marker, err := selfupdate.NewVersionMarker(a.cfg.VersionFile).Read(); err == nil {
			fmt.Printf("  installed bundle: %s\n", marker)
		}
		fmt.Printf("  home: %s\n", a.cfg.HomeDir)
	},
}
