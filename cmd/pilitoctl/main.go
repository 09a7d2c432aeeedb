// pilitoctl is the operator command line for the Pilito sync console.
package main

import "github.com/dalemusser/pilitosync/internal/cli"

func main() {
	cli.Execute()
}
