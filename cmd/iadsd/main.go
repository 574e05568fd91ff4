// Command iadsd runs the Integrated Adaptive Detection System daemon.
package main

import "github.com/netiads/iads/internal/cli"

func main() {
	cli.Execute()
}
