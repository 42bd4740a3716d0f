package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/quatton/paydesk/apps/payrollctl/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "payrollctl crashed: %v\n", r)
			if os.Getenv("PAYDESK_DEBUG") != "" {
				debug.PrintStack()
			}
			os.Exit(2)
		}
	}()

	cmd.Execute()
}
