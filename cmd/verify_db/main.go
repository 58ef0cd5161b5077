package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = config.DefaultDatabaseURL
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var total, scored, outOfRange, untiered int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(scored_at),
			count(*) FILTER (WHERE score < 0 OR score > 100),
			count(*) FILTER (WHERE scored_at IS NOT NULL AND (tier IS NULL OR tier = ''))
		FROM opportunities
	`).Scan(&total, &scored, &outOfRange, &untiered)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Opportunities: %d\n", total)
	fmt.Printf("Scored: %d\n", scored)
	fmt.Printf("Unscored: %d\n", total-scored)
	fmt.Printf("Score out of range: %d\n", outOfRange)
	fmt.Printf("Scored without tier: %d\n", untiered)

	rows, err := pool.Query(ctx, `SELECT tier, count(*) FROM opportunities WHERE scored_at IS NOT NULL GROUP BY tier ORDER BY tier`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("  %-10s %d\n", tier, n)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Rows failed: %v", err)
	}

	var orphanMetrics int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM source_health_metrics m
		LEFT JOIN source_configs s ON s.id = m.source_id
		WHERE s.id IS NULL
	`).Scan(&orphanMetrics)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("Metrics rows without source: %d\n", orphanMetrics)

	if outOfRange > 0 || untiered > 0 || orphanMetrics > 0 {
		os.Exit(1)
	}
}
