package main

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// cmdStats shows bank statistics and recent attempts
func cmdStats(args []string) error {
	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'testbank start' first)")
	}

	subCmd := "overview"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "overview", "":
		return cmdStatsOverview()
	case "attempts":
		return cmdStatsAttempts()
	default:
		return fmt.Errorf("unknown stats command: %s (valid: overview, attempts)", subCmd)
	}
}

func cmdStatsOverview() error {
	resp, err := http.Get(daemonAddr + "/v1/stats")
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	defer resp.Body.Close()

	var stats struct {
		Documents    int `json:"documents"`
		Questions    int `json:"questions"`
		Groups       int `json:"groups"`
		GroupMembers int `json:"group_members"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Println("Question Bank")
	fmt.Println("=============")
	fmt.Printf("Documents: %d\n", stats.Documents)
	fmt.Printf("Questions: %d\n", stats.Questions)
	fmt.Printf("Groups:    %d (%d members)\n", stats.Groups, stats.GroupMembers)

	return nil
}

func cmdStatsAttempts() error {
	resp, err := http.Get(daemonAddr + "/v1/attempts?limit=20")
	if err != nil {
		return fmt.Errorf("get attempts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		fmt.Println("Attempt storage is not enabled.")
		return nil
	}

	var result struct {
		Attempts []struct {
			Tag       string `json:"tag"`
			Status    string `json:"status"`
			Stage     string `json:"stage"`
			Cases     int    `json:"cases"`
			Passed    int    `json:"passed"`
			CreatedAt string `json:"created_at"`
		} `json:"attempts"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if len(result.Attempts) == 0 {
		fmt.Println("No attempts recorded yet.")
		return nil
	}

	fmt.Println("Recent Attempts")
	fmt.Println("===============")
	for _, a := range result.Attempts {
		detail := a.Status
		if a.Status == "pass" {
			detail = fmt.Sprintf("pass %d/%d", a.Passed, a.Cases)
		} else if a.Stage != "" {
			detail = fmt.Sprintf("%s at %s", a.Status, a.Stage)
		}
		fmt.Printf("%-20s %-20s %s\n", a.CreatedAt, a.Tag, detail)
	}

	return nil
}
