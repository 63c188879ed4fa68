package main

import (
	"context"
	"database/sql"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/netsoclabs/memberd/internal/admincli"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/config"
	"github.com/netsoclabs/memberd/internal/server/creds"
	"github.com/netsoclabs/memberd/internal/server/directory"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry := directory.NewLDAPRegistry(cfg, creds.NewCryptIssuer(), logger)

	app := admincli.NewApp(db, registry, cfg.LoginShells, os.Stdout)
	if err := app.Run(ctx, positionals(os.Args[1:])); err != nil {
		log.Fatalf("%v", err)
	}

}

// positionals strips the configuration flags and their values, leaving the
// command and its arguments.
func positionals(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			if !strings.Contains(args[i], "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		out = append(out, args[i])
	}
	return out
}
