package main

import "github.com/vitwit/walletsession/cmd/walletctl/cmd"

func main() {
	cmd.Execute()
}
