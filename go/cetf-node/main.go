// Command cetf-node manages a local tag store.
package main

import (
	"github.com/BadBoiLabs/cetf/go/cetf-node/cmd"
)

func main() {
	cmd.Execute()
}
