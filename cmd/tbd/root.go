package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leptos-null/tbd/container"
	"github.com/leptos-null/tbd/fat"
	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/types"
)

var rootCmd = &cobra.Command{
	Use:   "tbd",
	Short: "Convert Mach-O libraries and dyld shared-cache images to tbd stub files",

	// This command's own arguments don't fit cobra/pflag's single-value
	// flag model (spec.md §6 groups per-path options positionally after
	// each -p), so flag parsing is done by hand in parseGroups; cobra is
	// used for the command shell, --help, and the --list-* subcommands
	// only.
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,

	RunE: func(cmd *cobra.Command, args []string) error {
		argv := args
		if len(argv) == 0 {
			argv = os.Args[1:]
		}
		if len(argv) == 0 || argv[0] == "-h" || argv[0] == "--help" || argv[0] == "-u" {
			return cmd.Help()
		}

		groups, err := parseGroups(argv)
		if err != nil {
			return err
		}

		ok := true
		for _, g := range groups {
			if !runPath(g) {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	log.SetHandler(clihandler.Default)

	rootCmd.AddCommand(listArchitecturesCmd)
	rootCmd.AddCommand(listPlatformCmd)
	rootCmd.AddCommand(listRecurseCmd)
	rootCmd.AddCommand(listVersionsCmd)
	rootCmd.AddCommand(listMachoLibrariesCmd)

	cobra.OnInitialize(loadConfig)
}

// loadConfig reads optional user defaults for the allow-private-*
// family and default tbd version from $HOME/.config/tbd/config.yaml,
// the same viper-based layering the rest of the corpus uses for
// persistent CLI defaults.
func loadConfig() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	viper.AddConfigPath(home + "/.config/tbd")
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvPrefix("tbd")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}

// Execute runs the root command, exiting nonzero on any failure, per
// spec.md §6's "Exit code 0 on complete success, 1 otherwise".
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(color.RedString(err.Error()))
		os.Exit(1)
	}
}

// tableHeader prints a bold, colorized column header the way ipsw's
// --list-* commands do, followed by the rows supplied.
func tableHeader(title string, rows [][2]string) {
	bold := color.New(color.Bold)
	bold.Println(title)
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	for _, r := range rows {
		name := color.CyanString("%-*s", width, r[0])
		if r[1] == "" {
			fmt.Println(name)
			continue
		}
		fmt.Printf("%s  %s\n", name, r[1])
	}
}

var listArchitecturesCmd = &cobra.Command{
	Use:                "--list-architectures",
	Short:              "List every architecture the registry recognises",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := types.Registry()
		rows := make([][2]string, len(registry))
		for i, a := range registry {
			rows[i] = [2]string{a.Name, ""}
		}
		tableHeader("architectures", rows)
		return nil
	},
}

var listPlatformCmd = &cobra.Command{
	Use:                "--list-platform",
	Short:              "List every platform name recognised by --platform",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		platforms := types.AllPlatforms()
		rows := make([][2]string, len(platforms))
		for i, p := range platforms {
			rows[i] = [2]string{p.String(), ""}
		}
		tableHeader("platforms", rows)
		return nil
	},
}

var listRecurseCmd = &cobra.Command{
	Use:                "--list-recurse",
	Short:              "Describe the -r/--recurse modes",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		tableHeader("recurse modes", [][2]string{
			{"once", "recurse one directory level (default for -r)"},
			{"all", "recurse every directory level"},
		})
		return nil
	},
}

var listVersionsCmd = &cobra.Command{
	Use:                "--list-versions",
	Short:              "List the tbd dialects this tool can emit",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		tableHeader("tbd versions", [][2]string{
			{"v1", ""}, {"v2", ""}, {"v3", ""},
		})
		return nil
	},
}

var listMachoLibrariesCmd = &cobra.Command{
	Use:                "--list-macho-libraries <path>",
	Short:              "Walk a directory, printing which files classify as Mach-O dylibs",
	Args:               cobra.ExactArgs(1),
	DisableFlagParsing: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		return filepath.Walk(args[0], func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if isLibrary, size := classifyLibrary(p); isLibrary {
				fmt.Printf("%s\t%s\n", color.CyanString(p), humanize.Bytes(uint64(size)))
			}
			return nil
		})
	},
}

// classifyLibrary performs the cheap preflight --list-macho-libraries
// offers before a full recursive conversion: it classifies a file's
// container and peeks at its mach_header filetype field, without
// walking load commands or reading any symbol table.
func classifyLibrary(path string) (bool, int64) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0
	}
	src, err := source.OpenFile(path)
	if err != nil {
		return false, 0
	}
	defer src.Close()

	kind, err := container.Classify(src)
	if err != nil {
		return false, info.Size()
	}

	switch kind {
	case types.KindThin32, types.KindThin32Swapped, types.KindThin64, types.KindThin64Swapped:
		ft, err := peekFileType(src, kind)
		return err == nil && ft.IsLibrary(), info.Size()
	case types.KindFat32, types.KindFat64:
		slices, err := fat.Dispatch(src, kind)
		if err != nil || len(slices) == 0 {
			return false, info.Size()
		}
		subKind, err := container.Classify(slices[0].Source)
		if err != nil {
			return false, info.Size()
		}
		ft, err := peekFileType(slices[0].Source, subKind)
		return err == nil && ft.IsLibrary(), info.Size()
	default:
		return false, info.Size()
	}
}

// peekFileType reads just the mach_header's filetype field (the fourth
// 32-bit word), choosing byte order from the Kind container.Classify
// already determined, per the "Thin*"/"Thin*Swapped" pairing in
// spec.md §4.2.
func peekFileType(src source.Source, kind types.Kind) (types.FileType, error) {
	bo := binary.ByteOrder(binary.BigEndian)
	if kind == types.KindThin32Swapped || kind == types.KindThin64Swapped {
		bo = binary.LittleEndian
	}
	var buf [16]byte
	if err := src.ReadAt(buf[:], 0); err != nil {
		return 0, err
	}
	return types.FileType(bo.Uint32(buf[12:16])), nil
}
