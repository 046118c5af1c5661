package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/panelkit/panelkit"
	"github.com/panelkit/panelkit/internal/version"
)

func customUsage() {
	fmt.Fprintf(os.Stderr, "Panelkit Tabular Data Engine CLI (version %s)\n\n", version.Version)
	fmt.Fprintf(os.Stderr, "Usage: panelkit-cli [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  --demo\n\t\tRun basic demo\n")
	fmt.Fprintf(os.Stderr, "  --benchmark\n\t\tRun benchmark tests\n")
	fmt.Fprintf(os.Stderr, "  --rows N\n\t\tNumber of rows to use (default: 1000 for demo, 1000000 for benchmark)\n")
	fmt.Fprintf(os.Stderr, "  -v, --version\n\t\tPrint version information and exit\n")
	fmt.Fprintf(os.Stderr, "  -h, --help\n\t\tShow this help message and exit\n")
}

func main() {
	versionFlag := flag.Bool("v", false, "Print version and exit")
	flag.BoolVar(versionFlag, "version", false, "Print version and exit") // alias
	demoFlag := flag.Bool("demo", false, "Run basic demo")
	benchmarkFlag := flag.Bool("benchmark", false, "Run benchmark tests")
	rowsFlag := flag.Int("rows", 0, "Number of rows to use (default: 1000 for demo, 1000000 for benchmark)")

	//nolint:reassign // Standard Go pattern for customizing flag usage message
	flag.Usage = customUsage

	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}

	switch {
	case *demoFlag:
		runDemo(*rowsFlag)
	case *benchmarkFlag:
		runBenchmark(*rowsFlag)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

// buildPanel synthesizes a monthly entity/observation panel with n rows.
func buildPanel(n int) (*panelkit.Table, error) {
	entities := []string{"acme", "bolt", "cygnus", "dyna", "echo"}
	start := time.Date(2014, time.January, 31, 0, 0, 0, 0, time.UTC)

	names := make([]string, n)
	dates := make([]time.Time, n)
	prices := make([]float64, n)
	volumes := make([]int64, n)
	for i := range n {
		names[i] = entities[i%len(entities)]
		dates[i] = start.AddDate(0, i/len(entities), 0)
		prices[i] = 50.0 + float64(i%120)*0.75
		volumes[i] = int64(400 + (i%60)*25)
	}

	return panelkit.NewTable(
		panelkit.NewColumn("entity", names),
		panelkit.NewColumn("date", dates),
		panelkit.NewColumn("price", prices),
		panelkit.NewColumn("volume", volumes),
	)
}

func runDemo(rows int) {
	fmt.Println("Panelkit Tabular Data Engine Demo")
	fmt.Println("=================================")

	if rows == 0 {
		rows = 1000
	}

	fmt.Println("Creating sample panel...")
	tbl, err := buildPanel(rows)
	if err != nil {
		log.Printf("Error building panel: %v", err)
		return
	}
	defer tbl.Release()

	fmt.Printf("Created table with %d rows and %d columns\n", tbl.Len(), tbl.Width())
	fmt.Println("Columns:", tbl.Columns())
	fmt.Println()

	fmt.Println("1. Group by entity and reduce")
	gi, err := tbl.GroupBy("entity")
	if err != nil {
		log.Printf("Error grouping: %v", err)
		return
	}
	defer gi.Release()

	summary, err := gi.ReduceMany([]panelkit.AggSpec{
		{Column: "price", Func: panelkit.Mean(), As: "avg_price"},
		{Column: "volume", Func: panelkit.Sum(), As: "total_volume"},
		{Column: "price", Func: panelkit.Count(), As: "n"},
	}, panelkit.AggOptions{SkipNulls: true})
	if err != nil {
		log.Printf("Error reducing: %v", err)
		return
	}
	defer summary.Release()
	fmt.Printf("   per-entity summary: %d rows, columns %v\n", summary.Len(), summary.Columns())

	fmt.Println("2. Join entity sectors")
	sectors, err := panelkit.NewTable(
		panelkit.NewColumn("entity", []string{"acme", "bolt", "cygnus"}),
		panelkit.NewColumn("sector", []string{"industrial", "hardware", "aerospace"}),
	)
	if err != nil {
		log.Printf("Error building sectors: %v", err)
		return
	}
	defer sectors.Release()

	joined, err := tbl.Join(sectors, panelkit.JoinSpec{
		Type: panelkit.LeftJoin,
		On:   []panelkit.JoinClause{{Left: "entity", Op: panelkit.OpEq, Right: "entity"}},
	})
	if err != nil {
		log.Printf("Error joining: %v", err)
		return
	}
	defer joined.Release()
	fmt.Printf("   joined table: %d rows, %d columns\n", joined.Len(), joined.Width())

	fmt.Println("3. Compute one-month lagged prices per entity")
	lagged, err := tbl.Shift(panelkit.ShiftSpec{
		TimeColumn:  "date",
		ValueColumn: "price",
		PartitionBy: []string{"entity"},
		Periods:     1,
		Unit:        panelkit.ShiftMonth,
	})
	if err != nil {
		log.Printf("Error shifting: %v", err)
		return
	}
	defer lagged.Release()
	fmt.Printf("   lagged table columns: %v\n", lagged.Columns())

	fmt.Println("\nDemo completed successfully!")
}

func runBenchmark(rows int) {
	fmt.Println("Panelkit Tabular Data Engine Benchmark")
	fmt.Println("======================================")

	if rows == 0 {
		rows = 1_000_000
	}
	numRows := rows

	fmt.Printf("\nBenchmarking table construction for %d rows...\n", numRows)
	start := time.Now()
	tbl, err := buildPanel(numRows)
	if err != nil {
		log.Printf("Error building panel: %v", err)
		os.Exit(1)
	}
	defer tbl.Release()
	fmt.Printf("Table Construction Time: %s\n", time.Since(start))

	fmt.Printf("\nBenchmarking GroupBy + ReduceMany for %d rows...\n", numRows)
	start = time.Now()
	gi, err := tbl.GroupBy("entity")
	if err != nil {
		log.Printf("Error grouping: %v", err)
		os.Exit(1)
	}
	defer gi.Release()

	summary, err := gi.ReduceMany([]panelkit.AggSpec{
		{Column: "price", Func: panelkit.Mean()},
		{Column: "price", Func: panelkit.Max()},
		{Column: "volume", Func: panelkit.Sum()},
	}, panelkit.AggOptions{})
	if err != nil {
		log.Printf("Error reducing: %v", err)
		os.Exit(1)
	}
	defer summary.Release()
	fmt.Printf("GroupBy + ReduceMany Time: %s\n", time.Since(start))

	fmt.Printf("\nBenchmarking multi-key sort for %d rows...\n", numRows)
	start = time.Now()
	sorted, err := tbl.SortBy([]string{"entity", "date"}, []bool{true, false})
	if err != nil {
		log.Printf("Error sorting: %v", err)
		os.Exit(1)
	}
	defer sorted.Release()
	fmt.Printf("Sort Time: %s\n", time.Since(start))

	fmt.Printf("\nBenchmarking calendar lag for %d rows...\n", numRows)
	start = time.Now()
	lagged, err := tbl.Shift(panelkit.ShiftSpec{
		TimeColumn:  "date",
		ValueColumn: "price",
		PartitionBy: []string{"entity"},
		Periods:     1,
		Unit:        panelkit.ShiftMonth,
	})
	if err != nil {
		log.Printf("Error shifting: %v", err)
		os.Exit(1)
	}
	defer lagged.Release()
	fmt.Printf("Calendar Lag Time: %s\n", time.Since(start))

	fmt.Println("\nBenchmark suite completed successfully!")
}
