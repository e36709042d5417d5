package main

import "github.com/tenx/certdash/cmd/certdash/cmd"

func main() {
	cmd.Execute()
}
