package main

import "github.com/kozaktomas/samephoto/cmd"

func main() {
	cmd.Execute()
}
