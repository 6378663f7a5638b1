// The main package for the ecomintel executable.
package main

import (
	"github.com/kingabzpro/ECom-Intel/cmd"
)

func main() {
	cmd.Execute()
}
