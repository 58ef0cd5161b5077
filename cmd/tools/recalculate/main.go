package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/david/opportunity-radar/internal/recalc"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "server base URL")
	wait := flag.Bool("wait", true, "poll until the job finishes")
	flag.Parse()

	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	var started struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	status, err := call(client, http.MethodPost, *baseURL+"/api/v1/recalculate", adminSecret, &started)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	switch status {
	case http.StatusAccepted:
		fmt.Printf("Job %s started\n", started.JobID)
	case http.StatusConflict:
		fmt.Printf("Job %s already running; following it\n", started.JobID)
	default:
		fmt.Printf("Response Status: %d %s\n", status, started.Error)
		os.Exit(1)
	}
	if !*wait {
		return
	}

	for {
		time.Sleep(2 * time.Second)
		var job recalc.Job
		if _, err := call(client, http.MethodGet, *baseURL+"/api/v1/recalculate/jobs/"+started.JobID, adminSecret, &job); err != nil {
			fmt.Printf("Error polling job: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  %s: %d/%d processed, %d failed\n", job.State, job.Processed, job.Total, job.Failed)
		if !job.Done() {
			continue
		}
		if job.Error != "" {
			fmt.Printf("Job ended with error: %s\n", job.Error)
		}
		if job.State != recalc.StateCompleted {
			os.Exit(1)
		}
		return
	}
}

func call(client *http.Client, method, url, secret string, out any) (int, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Admin-Secret", secret)
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
