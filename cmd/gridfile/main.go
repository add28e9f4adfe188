// Command gridfile grids an SPC daily storm report CSV offline, using the
// same products and interpolation as the streaming service. One analysis is
// written per time bucket that has enough reports.
//
// Usage:
//
//	go run ./cmd/gridfile \
//	  -csv data/240426_rpts_hail.csv \
//	  -type hail \
//	  -date 2024-04-26 \
//	  -product hail-size \
//	  -format geojson \
//	  -out out/hail-size.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-gridder/internal/analysis"
	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
)

// magnitudeColumns maps event types to the CSV column holding the magnitude.
var magnitudeColumns = map[string]string{
	"hail":    "Size",
	"tornado": "F_Scale",
	"wind":    "Speed",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "SPC storm report CSV file")
	eventType := flag.String("type", "", "event type of the file: hail, wind, or tornado")
	date := flag.String("date", "", "report date, YYYY-MM-DD")
	productName := flag.String("product", "", "product to compute (default: first product for -type)")
	productsFile := flag.String("products", "", "YAML products file (default: built-in products)")
	format := flag.String("format", "json", "output format: json or geojson")
	out := flag.String("out", "", "output path (default: stdout)")
	flag.Parse()

	if *csvPath == "" || *eventType == "" || *date == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -type, -date")
	}
	if *format != "json" && *format != "geojson" {
		return fmt.Errorf("unknown -format %q", *format)
	}

	day, err := time.Parse(time.DateOnly, *date)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	products := config.DefaultProducts()
	if *productsFile != "" {
		if products, err = config.LoadProducts(*productsFile); err != nil {
			return err
		}
	}
	product, err := selectProduct(products, *productName, *eventType)
	if err != nil {
		return err
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	records, err := readRecords(f, *eventType)
	if err != nil {
		return fmt.Errorf("read %s: %w", *csvPath, err)
	}
	log.Printf("%s: %d records", *eventType, len(records))

	analyzer := analysis.NewInterpolator(runtime.GOMAXPROCS(0), slog.Default(), observability.NewMetrics())
	analyses, err := gridRecords(context.Background(), analyzer, product, records, day)
	if err != nil {
		return err
	}
	log.Printf("%s: %d analyses", product.Name, len(analyses))

	var w io.Writer = os.Stdout
	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			return err
		}
		file, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	return writeAnalyses(w, analyses, *format)
}

func selectProduct(products []config.Product, name, eventType string) (config.Product, error) {
	if name != "" {
		p, ok := config.ProductByName(products, name)
		if !ok {
			return config.Product{}, fmt.Errorf("unknown product %q", name)
		}
		if p.EventType != eventType {
			return config.Product{}, fmt.Errorf("product %s grids %s reports, not %s", p.Name, p.EventType, eventType)
		}
		return p, nil
	}
	for _, p := range products {
		if p.EventType == eventType {
			return p, nil
		}
	}
	return config.Product{}, fmt.Errorf("no product for event type %q", eventType)
}

// readRecords reads an SPC CSV with a header row. Short rows are skipped.
func readRecords(r io.Reader, eventType string) ([]domain.RawCSVRecord, error) {
	magCol, ok := magnitudeColumns[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	header := rows[0]
	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	recs := make([]domain.RawCSVRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(header) {
			continue
		}
		rec := domain.RawCSVRecord{
			Time:     get(row, colIdx, "Time"),
			Location: get(row, colIdx, "Location"),
			County:   get(row, colIdx, "County"),
			State:    get(row, colIdx, "State"),
			Lat:      get(row, colIdx, "Lat"),
			Lon:      get(row, colIdx, "Lon"),
			Comments: get(row, colIdx, "Comments"),
			Type:     eventType,
		}
		mag := get(row, colIdx, magCol)
		switch eventType {
		case "hail":
			rec.Size = mag
		case "tornado":
			rec.FScale = mag
		case "wind":
			rec.Speed = mag
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// gridRecords groups records by time bucket and analyzes each bucket in
// chronological order. Buckets with too few reports are skipped.
func gridRecords(ctx context.Context, analyzer analysis.Analyzer, product config.Product, records []domain.RawCSVRecord, day time.Time) ([]domain.Analysis, error) {
	byBucket := make(map[time.Time][]domain.StormEvent)
	for _, rec := range records {
		e := domain.EventFromRecord(rec, day)
		byBucket[e.TimeBucket] = append(byBucket[e.TimeBucket], e)
	}

	buckets := make([]time.Time, 0, len(byBucket))
	for b := range byBucket {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	var out []domain.Analysis
	for _, b := range buckets {
		obs := domain.ObservationsFromEvents(byBucket[b], product.EventType)
		a, err := analyzer.Analyze(ctx, product, b, obs)
		if errors.Is(err, analysis.ErrNotEnoughObservations) {
			log.Printf("%s: skipping %s: %v", product.Name, b.Format(time.RFC3339), err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", b.Format(time.RFC3339), err)
		}
		out = append(out, a)
	}
	return out, nil
}

func writeAnalyses(w io.Writer, analyses []domain.Analysis, format string) error {
	var v any = analyses
	if format == "geojson" {
		fcs := make([]any, len(analyses))
		for i, a := range analyses {
			fcs[i] = domain.AnalysisFeatures(a)
		}
		v = fcs
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
