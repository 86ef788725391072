package main

import "github.com/kozaktomas/marker-scanner/cmd"

func main() {
	cmd.Execute()
}
