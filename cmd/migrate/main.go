// migrate applies the embedded SQL migrations to DB_CONNECTION_STRING.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/sebuszqo/PlanCheckout/internal/config"
	"github.com/sebuszqo/PlanCheckout/internal/db/migrate"
)

func main() {
	direction := pflag.StringP("direction", "d", migrate.DirectionUp, "Migration direction: up or down")
	pflag.Parse()

	dsn := config.DatabaseURL()
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_CONNECTION_STRING is not set; create a .env or export it")
		os.Exit(1)
	}

	if err := migrate.Run(dsn, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
