package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	rules, err := db.NewStore(pool).ListRules(ctx)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Name", "Type", "Condition", "Points", "Priority", "Active", "Status"})

	broken := 0
	for _, r := range rules {
		status := "ok"
		if r.Condition == nil {
			status = "invalid: " + r.ConditionError
			broken++
		}
		t.AppendRow(table.Row{r.ID, r.Name, r.RuleType, r.ConditionType, r.Points, r.Priority, r.IsActive, status})
	}
	t.AppendFooter(table.Row{"", len(rules), "", "", "", "", "", broken})
	t.Render()

	if broken > 0 {
		os.Exit(2)
	}
}
