package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/osforge/forge/cmd"
	"github.com/osforge/forge/cmd/forge/cli"
)

func main() {
	phase := strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
	switch phase {
	case "assembler":
		cli.Run(&assembleCmd{}, phase, false)
	case "publisher":
		cli.Run(&publishCmd{}, phase, false)
	default:
		if len(os.Args) < 2 {
			cmd.Exit(cmd.FailCode(cmd.CodeForInvalidArgs, "parse arguments"))
		}
		if os.Args[1] == "-version" {
			cmd.ExitWithVersion()
		}
		subcommand()
	}
}

func subcommand() {
	phase := filepath.Base(os.Args[1])
	switch phase {
	case "assemble":
		cli.Run(&assembleCmd{}, phase, true)
	case "publish":
		cli.Run(&publishCmd{}, phase, true)
	default:
		cmd.Exit(cmd.FailCode(cmd.CodeForInvalidArgs, "recognize phase:", phase, "\nValid phases: assemble, publish"))
	}
}
