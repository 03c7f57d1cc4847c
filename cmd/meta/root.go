package meta

import (
	"github.com/spf13/cobra"
)

// Commands are the layer metadata commands. Every command opens the store, runs and
// closes the store again, so all changes are flushed before the command returns.
var Commands = []*cobra.Command{
	getCmd,
	putCmd,
	dumpCmd,
	migrateCmd,
}

func init() {
	dumpCmd.Flags().Bool("decode", false, "Print decoded values instead of the stored percent-encoded form")
}
