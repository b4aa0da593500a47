package main

import (
	"context"
	"log"

	"github.com/dalemusser/usergrid/app"
	"github.com/dalemusser/usergrid/internal/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
