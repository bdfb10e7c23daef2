package main

import "mailconsole/internal/cli"

func main() {
	cli.Execute()
}
