// Command watch_rows polls a running monitor's rows endpoint and
// renders the evaluated table in the terminal. Handy for eyeballing a
// session without the JSON noise.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/monitor"
)

type rowsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Session   string                `json:"session"`
		Active    bool                  `json:"active"`
		Rows      []models.EvaluatedRow `json:"rows"`
		Hidden    models.HiddenCounts   `json:"hidden"`
		IVSummary *monitor.Summary      `json:"ivSummary"`
	} `json:"data"`
	Message string `json:"message"`
}

func main() {
	var (
		baseURL  string
		token    string
		interval time.Duration
		once     bool
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "Dashboard base URL")
	flag.StringVar(&token, "token", "", "Dashboard auth token")
	flag.DurationVar(&interval, "interval", 2*time.Second, "Poll interval")
	flag.BoolVar(&once, "once", false, "Print one snapshot and exit")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	for {
		if err := printSnapshot(client, baseURL, token); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			if once {
				os.Exit(1)
			}
		}
		if once {
			return
		}
		time.Sleep(interval)
	}
}

func printSnapshot(client *http.Client, baseURL, token string) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/monitor/rows", nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body rowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if body.Status != "success" {
		return fmt.Errorf("dashboard: %s", body.Message)
	}

	d := body.Data
	state := "stopped"
	if d.Active {
		state = "active"
	}
	fmt.Printf("\nsession=%s (%s)  hidden: distance=%d premium=%d",
		d.Session, state, d.Hidden.Distance, d.Hidden.Premium)
	if d.IVSummary != nil {
		fmt.Printf("  iv: %s %d/%d", d.IVSummary.Status, d.IVSummary.Success, d.IVSummary.Total)
	}
	fmt.Println()

	fmt.Printf("%-22s %-5s %8s %9s %9s %8s %8s  %s\n",
		"SYMBOL", "TYPE", "STRIKE", "PREMIUM", "REF", "IV", "SPIKE%", "D P I S H A")
	for _, r := range d.Rows {
		fmt.Printf("%-22s %-5s %8.2f %9.2f %9.2f %8.2f %8.2f  %s\n",
			r.Contract.Symbol, r.Contract.Type, r.Contract.Strike,
			r.Premium, r.ReferencePrice, r.IV, r.SpikePercent, verdicts(r))
	}
	return nil
}

func verdicts(r models.EvaluatedRow) string {
	mark := func(b bool) byte {
		if b {
			return 'Y'
		}
		return '.'
	}
	return fmt.Sprintf("%c %c %c %c %c %c",
		mark(r.DistancePass), mark(r.PremiumPass), mark(r.IVPass),
		mark(r.SpikePass), mark(r.HistoryPass), mark(r.AllPass))
}
