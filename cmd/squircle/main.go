package main

import "github.com/terraconstructs/squircle/cmd/squircle/cmd"

func main() {
	cmd.Execute()
}
