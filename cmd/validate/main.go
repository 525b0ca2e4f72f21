// Command validate dry-runs report files through the normalization chain
// without touching the table store. Each file goes through four phases:
// decode, header reconciliation, column classification and normalization.
// Fatal errors fail a phase; diagnostics are printed as notes.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -basin-map maps/river_basins.json \
//	  data/json/water_level_1716960600.json data/json/
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/river-gauge-etl/internal/adapter/reportfs"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	basinMap string
	zone     string
	policy   string
	ordering string
}

func main() {
	var opts options
	flag.StringVar(&opts.basinMap, "basin-map", "maps/river_basins.json", "river basin lookup file")
	flag.StringVar(&opts.zone, "tz", "Asia/Colombo", "report time zone")
	flag.StringVar(&opts.policy, "ambiguity", "first", "ambiguity policy: first or strict")
	flag.StringVar(&opts.ordering, "ordering", "clock24", "hour ordering: clock24 or as_written")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, opts, flag.Args()); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, opts options, args []string) int {
	normalizer, err := newNormalizer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	files, err := collectFiles(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== River Gauge Report Validation ===")
	fmt.Fprintln(out)

	phases := []*phase{
		{name: "Phase 1: Decode (extractor JSON)"},
		{name: "Phase 2: Header Reconciliation"},
		{name: "Phase 3: Column Classification"},
		{name: "Phase 4: Normalization"},
	}

	var records int
	for _, path := range files {
		records += validateFile(phases, normalizer, opts, path)
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Reports: %d, normalized records: %d\n", len(files), records)

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(out, "  note: %s\n", n)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func newNormalizer(opts options) (*domain.Normalizer, error) {
	basins, err := domain.LoadBasinMap(opts.basinMap)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(opts.zone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", opts.zone, err)
	}
	policy, err := domain.ParseAmbiguityPolicy(opts.policy)
	if err != nil {
		return nil, err
	}
	ordering, err := domain.ParseHourOrdering(opts.ordering)
	if err != nil {
		return nil, err
	}
	return domain.NewNormalizer(domain.NewGeoMapper(basins, nil), domain.Options{
		Location:        loc,
		AmbiguityPolicy: policy,
		HourOrdering:    ordering,
	}), nil
}

// collectFiles expands directory arguments into their report files.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, ok := reportfs.ParseName(e.Name()); ok && !e.IsDir() {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateFile runs one report through every phase and returns the number of
// records it normalized. A failed phase stops the later ones for that file.
func validateFile(phases []*phase, normalizer *domain.Normalizer, opts options, path string) int {
	name := filepath.Base(path)
	decode, headers, classify, normalize := phases[0], phases[1], phases[2], phases[3]

	// ── Phase 1: Decode ──
	if _, ok := reportfs.ParseName(name); !ok {
		decode.errorf("%s: file name does not match water_level_<epoch>.json", name)
		return 0
	}
	report, err := reportfs.ReadReport(path)
	if err != nil {
		decode.errorf("%s: %v", name, err)
		return 0
	}
	table, err := report.Table()
	if err != nil {
		decode.errorf("%s: %v", name, err)
		return 0
	}
	if len(table) < 2 {
		decode.errorf("%s: table has %d rows, need two header rows", name, len(table))
		return 0
	}

	// ── Phase 2: Header Reconciliation ──
	columns, diags, err := domain.ReconcileHeaders(table[0], table[1])
	if err != nil {
		headers.errorf("%s: %v", name, err)
		return 0
	}
	for _, d := range diags {
		headers.notef("%s: %s", name, d.Message)
	}
	if _, err := domain.MaterializeRows(table[2:], len(columns)); err != nil {
		headers.errorf("%s: %v", name, err)
		return 0
	}

	// ── Phase 3: Column Classification ──
	policy, _ := domain.ParseAmbiguityPolicy(opts.policy)
	ordering, _ := domain.ParseHourOrdering(opts.ordering)
	cls, clsDiags, err := domain.Classify(columns, domain.ClassifyOptions{Policy: policy, Ordering: ordering})
	if err != nil {
		classify.errorf("%s: %v", name, err)
		return 0
	}
	for _, d := range clsDiags {
		classify.notef("%s: %s", name, d.Message)
	}
	if cls.WaterLevelMax != nil && cls.WaterLevelMin != nil {
		classify.notef("%s: water level %q vs %q", name, cls.WaterLevelMax.Name, cls.WaterLevelMin.Name)
	}

	// ── Phase 4: Normalization ──
	res, err := normalizer.Normalize(report)
	if err != nil {
		normalize.errorf("%s: %v", name, err)
		return 0
	}
	checkRecords(normalize, name, res)
	for kind, n := range res.Diagnostics.ByKind() {
		if kind == domain.DiagBasinLookupMiss || kind == domain.DiagGeoOverride || kind == domain.DiagTrendError {
			normalize.notef("%s: %d %s", name, n, kind)
		}
	}
	return len(res.Records)
}

var validTags = map[string]bool{
	string(domain.TrendRising):   true,
	string(domain.TrendFalling):  true,
	string(domain.TrendNoChange): true,
	string(domain.TrendError):    true,
}

func checkRecords(p *phase, name string, res domain.Result) {
	for i, rec := range res.Records {
		pf := func(format string, args ...any) {
			p.errorf("%s record %d (%s): "+format, append([]any{name, i, rec.GaugingStation}, args...)...)
		}

		if rec.ReportTimestamp != res.ReportTimestamp || !strings.HasPrefix(rec.ReportTimestamp, rec.ReportDate) {
			pf("report_timestamp %q inconsistent with report_date %q", rec.ReportTimestamp, rec.ReportDate)
		}
		if !validTags[rec.WaterLevelChangeTag] {
			pf("unknown water_level_change_tag %q", rec.WaterLevelChangeTag)
		}
		if rec.GaugingStation == "" {
			pf("gauging_station is empty")
		}
		if rec.WaterLevelChangeTag != string(domain.TrendError) && rec.LastHourWaterLevelDifference == nil {
			pf("tag %q without a water level difference", rec.WaterLevelChangeTag)
		}
	}
}
