package main

import "github.com/mselser95/polymarket-sim/cmd"

func main() {
	cmd.Execute()
}
