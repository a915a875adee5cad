package main

import "playsync/cli"

func main() {
	cli.Execute()
}
