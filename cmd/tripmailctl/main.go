package main

import (
	"os"

	tripmailctlcmd "github.com/ldruley/tripmailer/pkg/tripmailctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := tripmailctlcmd.NewRootCommand(tripmailctlcmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
