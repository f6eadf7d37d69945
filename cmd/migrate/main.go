package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"accountsvc/internal/account"
	"accountsvc/internal/migrate"
	"accountsvc/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn  = flag.String("dsn", os.Getenv("ACCOUNTSVC_PG_DSN"), "PostgreSQL DSN")
		root = flag.String("root", "migrations", "Directory holding sql/ and seeds/")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or ACCOUNTSVC_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, os.DirFS(*root), "sql", "seeds")

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
		if err == nil {
			err = syncPermissionCatalog(ctx, db)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// syncPermissionCatalog upserts the compiled-in permission catalog so the
// stored rows cannot drift from the codes the service evaluates.
func syncPermissionCatalog(ctx context.Context, db *sql.DB) error {
	uow := pg.NewStore(db).NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.Permissions().Ensure(ctx, account.CatalogPermissions(time.Now().UTC())); err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	return uow.Commit(ctx)
}
