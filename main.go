package main

import "github.com/kozaktomas/photo-moments/cmd"

func main() {
	cmd.Execute()
}
