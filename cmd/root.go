package cmd

import (
	"fmt"
	"github.com/ValentinKolb/lmstore/cmd/meta"
	"github.com/ValentinKolb/lmstore/cmd/perf"
	"github.com/ValentinKolb/lmstore/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lmstore",
		Short: "layer metadata store",
		Long: fmt.Sprintf(`lmstore (v%s)

A write-back store for per-layer metadata. Every layer keeps a small mapping of
keys to values in a gzip compressed properties file below the root directory.

All flags can also be set via environment variables. The format of the environment
variables is LMS_<flag> (e.g. LMS_FLUSH_INTERVAL=10s). .env and .env.local files
in the working directory are loaded first.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: bindFlags,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lmstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lmstore v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(meta.Commands...)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// bindFlags binds the flags of the executed command to viper
func bindFlags(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
