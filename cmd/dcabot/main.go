package main

import "crypto-dca-bot/internal/cli"

func main() {
	cli.Execute()
}
