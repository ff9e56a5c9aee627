package main

import "metawave/cmd"

func main() {
	cmd.Execute()
}
