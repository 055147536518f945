package main

import "allthetropes/catwalk/cmd"

func main() {
	cmd.Execute()
}
