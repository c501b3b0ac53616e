package main

import "github.com/jmehdipour/billing-sandbox/cmd"

func main() {
	cmd.Execute()
}
