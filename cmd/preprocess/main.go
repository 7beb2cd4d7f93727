// Command preprocess aggregates a radar vertical-profile CSV export into the
// grid file loaded by tipaths.
//
// Usage:
//
//	go run ./cmd/preprocess \
//	  -case-study data/casestudies/enram-2016.yaml \
//	  -csv data/raw/enram-2016.csv \
//	  -out data/grids/enram-2016.json
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/migration-paths/internal/adapter/file"
	"github.com/couchcryptid/migration-paths/internal/preprocess"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csPath := flag.String("case-study", "", "case study metadata (.json or .yaml)")
	csvPath := flag.String("csv", "", "vertical-profile CSV export")
	outPath := flag.String("out", "", "output path for the grid JSON")
	flag.Parse()

	if *csPath == "" || *csvPath == "" || *outPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -case-study, -csv, -out")
	}

	cs, err := file.LoadCaseStudy(*csPath)
	if err != nil {
		return err
	}
	if err := cs.Validate(); err != nil {
		return fmt.Errorf("case study %s: %w", *csPath, err)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	records, err := preprocess.ReadRecords(f)
	if err != nil {
		return fmt.Errorf("%s: %w", *csvPath, err)
	}
	log.Printf("read %s records from %s", humanize.Comma(int64(len(records))), *csvPath)

	grid, stats, err := preprocess.Aggregate(cs, records)
	if err != nil {
		return fmt.Errorf("%s: %w", *csvPath, err)
	}
	if err := grid.Validate(cs); err != nil {
		return fmt.Errorf("aggregated grid: %w", err)
	}

	n, err := file.WriteGrid(*outPath, grid)
	if err != nil {
		return err
	}

	log.Printf("case study %s: %d segments × %d strata × %d radars",
		cs.ID, cs.SegmentCount(), cs.NativeStrata(), len(cs.Radars))
	log.Printf("cells: %s, empty: %s", humanize.Comma(int64(stats.Cells)), humanize.Comma(int64(stats.EmptyCells)))
	log.Printf("wrote %s (%s)", *outPath, humanize.Bytes(uint64(n)))
	return nil
}
