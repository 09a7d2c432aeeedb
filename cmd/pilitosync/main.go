// pilitosync serves the Pilito sync admin console.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/pilitosync/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
