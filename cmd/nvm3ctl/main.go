// Command nvm3ctl inspects and edits the NVM3 object store of a CPC secondary.
package main

import (
	"os"

	"github.com/cpc-project/nvm3/cmd/nvm3ctl/commands"
)

func main() {
	root := commands.New(nil)
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
