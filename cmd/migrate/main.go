// Migrate applies database schema migrations embedded in the binary.
package main

import (
	"flag"
	"fmt"
	"os"

	"netra-apex/backend/internal/config"
	"netra-apex/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *direction, err)
		os.Exit(1)
	}
	fmt.Printf("migrations %s: done\n", *direction)
}
