package main

import "github.com/brandonio21/download-sweeper/cmd"

func main() {
	cmd.Execute()
}
