// offsetwatch follows the UNBEATABLE [white label] rhythm tracker offset
// stored in the game's settings file.
package main

import (
	"os"

	"github.com/hupe1980/offsetwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
