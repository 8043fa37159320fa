package main

import (
	"fmt"
	"os"

	"hearthledger/cmd/categorize"
	"hearthledger/cmd/ingest"
	"hearthledger/cmd/initialize"
	"hearthledger/cmd/learn"
	"hearthledger/cmd/link"
	"hearthledger/cmd/rescan"
	"hearthledger/cmd/root"
	syncc "hearthledger/cmd/sync"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(initialize.Cmd)
	root.Cmd.AddCommand(ingest.Cmd)
	root.Cmd.AddCommand(syncc.Cmd)
	root.Cmd.AddCommand(categorize.Cmd)
	root.Cmd.AddCommand(link.Cmd)
	root.Cmd.AddCommand(rescan.Cmd)
	root.Cmd.AddCommand(learn.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
