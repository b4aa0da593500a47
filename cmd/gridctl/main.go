package main

import (
	"os"

	"github.com/dalemusser/usergrid/internal/gridctl"
)

func main() {
	os.Exit(gridctl.Run("gridctl", os.Args[1:]))
}
