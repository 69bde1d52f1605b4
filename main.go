package main

import "github.com/halvden/comicfetch/cmd"

func main() {
	cmd.Execute()
}
