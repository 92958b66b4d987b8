package main

import "github.com/audiolibrelab/wavcapture/cmd"

func main() {
	cmd.Execute()
}
