package main

import (
	"fmt"
	"os"

	"github.com/metastage/metastage/cmd/metastaged/launcher"
	"github.com/spf13/viper"
)

func main() {
	cmd, err := launcher.NewCommand(viper.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
