package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"

	"causalgen-backend/internal/reports"
	"causalgen-backend/pkg/api"
)

func getJson(url string, out any) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Accept", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %v", err)
	}

	return nil
}

func pickRun(baseURL, runId string) (api.Run, error) {
	var runs []api.Run
	if err := getJson(baseURL+"/runs", &runs); err != nil {
		return api.Run{}, err
	}

	if runId != "" {
		for _, run := range runs {
			if run.Id.String() == runId {
				return run, nil
			}
		}
		return api.Run{}, fmt.Errorf("run %s not found", runId)
	}

	// Runs come back newest first; report on the newest one with cases.
	for _, run := range runs {
		if run.TotalCases > 0 {
			return run, nil
		}
	}

	return api.Run{}, fmt.Errorf("no runs with cases found")
}

func main() {
	baseURL := flag.String("url", "http://localhost:8001/api/v1", "base url of the backend api")
	runId := flag.String("run", "", "run id to report on (default: newest run with cases)")
	flag.Parse()

	run, err := pickRun(*baseURL, *runId)
	if err != nil {
		log.Fatalf("error selecting run: %v", err)
	}

	fmt.Printf("run %s (%s) status=%s cases=%d validated=%d\n\n", run.Name, run.Id, run.Status, run.TotalCases, run.ValidatedCases)

	var stats api.RunStats
	if err := getJson(fmt.Sprintf("%s/runs/%s/stats", *baseURL, run.Id), &stats); err != nil {
		log.Fatalf("error fetching stats: %v", err)
	}

	fmt.Println(reports.Format(stats))

	var diversity api.DiversitySnapshot
	if err := getJson(fmt.Sprintf("%s/runs/%s/diversity", *baseURL, run.Id), &diversity); err != nil {
		log.Fatalf("error fetching diversity: %v", err)
	}

	fmt.Println("least used subdomains:")
	for _, subdomain := range diversity.LeastUsed {
		fmt.Printf("  %s (%d)\n", subdomain, diversity.SubdomainCounts[subdomain])
	}
}
