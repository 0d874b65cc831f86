package main

import "github.com/DataLoomHQ/dataloom-cli/cmd"

func main() {
	cmd.Execute()
}
