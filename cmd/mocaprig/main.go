package main

import "github.com/flexmocap/rigcore/cmd/mocaprig/cmd"

func main() {
	cmd.Execute()
}
