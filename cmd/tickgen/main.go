package main

import (
	"context"
	"flag"
	"io"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/muhammadchandra19/tickbar/pkg/config"
	"github.com/muhammadchandra19/tickbar/pkg/questdb"
)

func main() {
	var (
		out      = flag.String("out", "", "CSV file to write (stdout when empty)")
		toDB     = flag.Bool("questdb", false, "Insert into the QuestDB quotes table instead of writing CSV")
		symbol   = flag.String("symbol", "EURUSD", "Symbol of the quotes inserted into QuestDB")
		start    = flag.String("start", "2024-01-02T00:00:00Z", "Time of the first quote (RFC 3339)")
		count    = flag.Int("count", 10000, "Number of quotes to generate")
		price    = flag.Float64("price", 1.1, "Initial mid price")
		spread   = flag.Float64("spread", 0.0002, "Distance between ask and bid")
		step     = flag.Float64("step", 0.0001, "Largest mid price move between two quotes")
		interval = flag.Duration("interval", time.Second, "Mean gap between quotes")
		volume   = flag.Float64("volume", 0, "Largest volume of each side, 0 leaves volumes empty")
		seed     = flag.Int64("seed", 0, "Random seed (current time when 0)")
	)
	flag.Parse()

	at, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		log.Fatalf("Invalid start %q: %v", *start, err)
	}
	if *count < 1 {
		log.Fatalf("Invalid count %d: at least one quote is required", *count)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	ticks := generate(rand.New(rand.NewSource(*seed)), walk{
		start:    at,
		count:    *count,
		price:    *price,
		spread:   *spread,
		step:     *step,
		interval: *interval,
		volume:   *volume,
	})
	log.Printf("Generated %d quotes from %s to %s", len(ticks), ticks[0].Time.Format(time.RFC3339), ticks[len(ticks)-1].Time.Format(time.RFC3339))

	if *toDB {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx := context.Background()
		client, err := questdb.NewClient(ctx, cfg.QuestDB)
		if err != nil {
			log.Fatalf("Failed to initialize QuestDB client: %v", err)
		}
		defer client.Close()

		n, err := client.CopyFrom(ctx, pgx.Identifier{"quotes"}, quoteColumns, quoteRows(*symbol, ticks))
		if err != nil {
			log.Fatalf("Failed to insert quotes: %v", err)
		}
		log.Printf("Inserted %d %s quotes into QuestDB", n, *symbol)
		return
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := writeCSV(w, ticks); err != nil {
		log.Fatalf("Failed to write quotes: %v", err)
	}
}
