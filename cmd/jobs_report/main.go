package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	days := flag.Int("days", 7, "number of days to report")
	run := flag.String("run", "", "only report this run id")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	since := time.Now().UTC().AddDate(0, 0, -*days)
	q := `SELECT date_trunc('day', created_at) AS day, COALESCE(NULLIF(mask_source, ''), '-'), status,
		COUNT(*), COALESCE(AVG(duration_ms), 0)
		FROM jobs WHERE created_at >= $1 AND ($2 = '' OR run_id = $2)
		GROUP BY 1, 2, 3 ORDER BY 1, 2, 3`
	rows, err := db.Query(q, since, *run)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	defer rows.Close()

	fmt.Printf("Jobs since %s (UTC):\n", since.Format("2006-01-02"))
	fmt.Printf("%-10s  %-8s  %-6s  %6s  %8s\n", "day", "source", "status", "count", "avg_ms")
	var total int64
	for rows.Next() {
		var (
			day            time.Time
			source, status string
			n              int64
			avg            float64
		)
		if err := rows.Scan(&day, &source, &status, &n, &avg); err != nil {
			log.Fatalf("scan: %v", err)
		}
		total += n
		fmt.Printf("%-10s  %-8s  %-6s  %6d  %8.0f\n", day.Format("2006-01-02"), source, status, n, avg)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("rows: %v", err)
	}
	fmt.Printf("total=%d\n", total)
}
