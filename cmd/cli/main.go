package main

import (
	"fmt"
	"os"

	"github.com/crucial707/logsink/cmd/cli/auth"
	"github.com/crucial707/logsink/cmd/cli/logs"
	"github.com/crucial707/logsink/cmd/cli/root"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	logs.InitLogs(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
