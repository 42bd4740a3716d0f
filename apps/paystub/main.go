package main

import "github.com/quatton/paydesk/apps/paystub/cmd"

func main() {
	cmd.Execute()
}
