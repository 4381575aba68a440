package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	days := flag.Int("older-than", 30, "delete jobs older than this many days")
	failedOnly := flag.Bool("failed-only", false, "only delete failed jobs")
	dry := flag.Bool("dry-run", false, "count, do not delete")
	flag.Parse()
	if *days < 1 {
		log.Fatal("-older-than must be at least 1")
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	where := `created_at < $1 AND ($2 = false OR status = 'failed')`
	if *dry {
		var n int64
		if err := db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE `+where, cutoff, *failedOnly).Scan(&n); err != nil {
			log.Fatalf("count: %v", err)
		}
		fmt.Printf("would delete %d jobs created before %s\n", n, cutoff.Format(time.RFC3339))
		return
	}
	res, err := db.Exec(`DELETE FROM jobs WHERE `+where, cutoff, *failedOnly)
	if err != nil {
		log.Fatalf("delete: %v", err)
	}
	n, _ := res.RowsAffected()
	fmt.Printf("deleted %d jobs created before %s\n", n, cutoff.Format(time.RFC3339))
}
