package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/oakhollow/barnwatch/internal/database"
)

func main() {
	limit := flag.Int("limit", 5, "Number of recent sessions to show")
	showVerdicts := flag.Bool("verdicts", false, "Print per-frame verdicts for each session")
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./barnwatch.db"
	}

	db, err := database.NewDB(database.Config{Type: "sqlite", SQLitePath: dbPath})
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	repo := database.NewSessionRepo(db)
	ctx := context.Background()

	sessions, err := repo.RecentSessions(ctx, *limit)
	if err != nil {
		log.Fatal("Failed to query sessions:", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No monitoring sessions recorded yet.")
		return
	}

	fmt.Println("Recent monitoring sessions")
	fmt.Println("==========================")

	for _, s := range sessions {
		fmt.Printf("\n%s  [%s] %s\n", s.StartedAt.Format("2006-01-02 15:04"), s.Mode, s.Source)
		fmt.Printf("  frames: %d  errors: %d  alerts: %d  (%.0fs)\n",
			s.Frames, s.Errors, s.Alerts, s.FinishedAt.Sub(s.StartedAt).Seconds())

		if !*showVerdicts {
			continue
		}

		verdicts, err := repo.VerdictsBySession(ctx, s.ID)
		if err != nil {
			log.Printf("  failed to load verdicts: %v", err)
			continue
		}
		for _, v := range verdicts {
			if v.Error != "" {
				fmt.Printf("    %s ERROR: %s\n", v.Frame, v.Error)
				continue
			}
			line := fmt.Sprintf("    %s %-8s [%s] %s", v.Frame, v.Severity, v.HorseState, v.Description)
			if len(v.Hazards) > 0 {
				line += " (" + strings.Join(v.Hazards, ", ") + ")"
			}
			fmt.Println(line)
		}
	}
}
