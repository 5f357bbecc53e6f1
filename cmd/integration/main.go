// End-to-end smoke run against synthetic market data. Exercises the
// full monitoring pipeline with no live provider or feed: chain fetch,
// strike selection, streaming quotes, reference resolution, the
// partial-volatility retry cycle, and session stop semantics.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/mock"
	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/monitor"
)

func main() {
	fmt.Println("=== Spike Monitor - End-to-End Integration Run ===")
	fmt.Println()

	logger := log.New(os.Stdout, "[E2E] ", log.LstdFlags)

	dataProvider := mock.NewDataProvider()
	dataProvider.FailFirstIV(3) // force one partial batch to exercise the retry

	feedClient := mock.NewFeed(200 * time.Millisecond)
	session := monitor.NewSession(dataProvider, feedClient, logger, 30*time.Second)
	feedClient.SetHandler(session.HandleQuote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = feedClient.Run(ctx)
	}()

	fmt.Println("All components initialized")
	fmt.Println()

	testsPassed := 0
	totalTests := 4

	cfg := models.MonitorConfig{
		Exchange:          "NFO",
		Underlying:        "NIFTY",
		Expiry:            time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		StrikeCount:       10,
		DistanceThreshold: 1,
		PremiumThreshold:  0.5,
		IVThreshold:       5,
		SpikeThreshold:    1,
		ReferenceBasis:    models.BasisLastXMinutes,
		LookbackMinutes:   5,
	}

	fmt.Println("Test 1: Session Start and Strike Selection")
	fmt.Println("==========================================")
	id, err := session.Start(ctx, cfg)
	rows, _ := session.Rows()
	if err == nil && id != "" && len(rows) > 0 {
		testsPassed++
		fmt.Printf("Session %s monitoring %d contracts\n", id, len(rows))
		fmt.Println("PASSED")
	} else {
		fmt.Printf("start error: %v\n", err)
		fmt.Println("FAILED")
	}
	fmt.Println()

	fmt.Println("Test 2: Quotes and Liveness")
	fmt.Println("===========================")
	time.Sleep(time.Second)
	rows, _ = session.Rows()
	live := 0
	for _, r := range rows {
		if r.HistoryPass {
			live++
		}
	}
	if live == len(rows) && live > 0 {
		testsPassed++
		fmt.Printf("%d/%d contracts ticking\n", live, len(rows))
		fmt.Println("PASSED")
	} else {
		fmt.Printf("only %d/%d contracts live\n", live, len(rows))
		fmt.Println("FAILED")
	}
	fmt.Println()

	fmt.Println("Test 3: Volatility Retry Recovery")
	fmt.Println("=================================")
	deadline := time.Now().Add(10 * time.Second)
	recovered := false
	for time.Now().Before(deadline) {
		if summary, ok := session.Summary(); ok && summary.Failed == 0 && summary.Success > 0 {
			recovered = true
			fmt.Printf("final batch: total=%d success=%d\n", summary.Total, summary.Success)
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	if recovered {
		testsPassed++
		fmt.Println("PASSED")
	} else {
		fmt.Println("volatility never recovered from partial batch")
		fmt.Println("FAILED")
	}
	fmt.Println()

	fmt.Println("Test 4: Stop Retains Rows, Ignores Quotes")
	fmt.Println("=========================================")
	session.Stop()
	rowsAtStop, _ := session.Rows()
	time.Sleep(500 * time.Millisecond)
	rowsAfter, _ := session.Rows()
	if !session.Active() && len(rowsAtStop) > 0 && sameRows(rowsAtStop, rowsAfter) {
		testsPassed++
		fmt.Println("PASSED")
	} else {
		fmt.Println("FAILED")
	}
	fmt.Println()

	printRowTable(rowsAfter)

	fmt.Printf("\n=== %d/%d tests passed ===\n", testsPassed, totalTests)
	if testsPassed != totalTests {
		os.Exit(1)
	}
}

func sameRows(a, b []models.EvaluatedRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Contract.Symbol != b[i].Contract.Symbol || a[i].Premium != b[i].Premium {
			return false
		}
	}
	return true
}

func printRowTable(rows []models.EvaluatedRow) {
	fmt.Println("Final table:")
	fmt.Printf("%-22s %8s %8s %8s %8s %6s\n", "SYMBOL", "STRIKE", "PREMIUM", "IV", "SPIKE%", "PASS")
	for _, r := range rows {
		fmt.Printf("%-22s %8.2f %8.2f %8.2f %8.2f %6v\n",
			r.Contract.Symbol, r.Contract.Strike, r.Premium, r.IV, r.SpikePercent, r.AllPass)
	}
}
