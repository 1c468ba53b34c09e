package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// cmdQuestions lists or shows questions via the daemon
func cmdQuestions(args []string) error {
	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'testbank start' first)")
	}

	subCmd := "list"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "list", "":
		return cmdQuestionsList()
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: testbank questions show <tag>")
		}
		return cmdQuestionsShow(args[1])
	default:
		return fmt.Errorf("unknown questions command: %s (valid: list, show)", subCmd)
	}
}

func cmdQuestionsList() error {
	resp, err := http.Get(daemonAddr + "/v1/questions")
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Questions []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
			ID   string `json:"id"`
			Tag  string `json:"tag"`
		} `json:"questions"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if len(result.Questions) == 0 {
		fmt.Println("No questions loaded. Add documents to the question directories.")
		return nil
	}

	fmt.Println("Questions")
	fmt.Println("=========")
	for _, q := range result.Questions {
		fmt.Printf("%-30s %-10s %s\n", q.Name, q.Kind, q.Tag)
	}

	return nil
}

func cmdQuestionsShow(tag string) error {
	resp, err := http.Get(daemonAddr + "/v1/questions/" + url.PathEscape(tag))
	if err != nil {
		return fmt.Errorf("get question: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("question %s not found", tag)
	}

	var q struct {
		Name  string `json:"name"`
		Kind  string `json:"kind"`
		Tag   string `json:"tag"`
		Text  string `json:"text"`
		Cases int    `json:"cases"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("%s (%s, %d cases)\n\n", q.Name, q.Kind, q.Cases)
	fmt.Println(q.Text)

	return nil
}

// cmdGroups lists groups or draws from one via the daemon
func cmdGroups(args []string) error {
	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'testbank start' first)")
	}

	subCmd := "list"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "list", "":
		return cmdGroupsList()
	case "draw":
		if len(args) < 2 {
			return fmt.Errorf("usage: testbank groups draw <name>")
		}
		return cmdGroupsDraw(args[1])
	default:
		return fmt.Errorf("unknown groups command: %s (valid: list, draw)", subCmd)
	}
}

func cmdGroupsList() error {
	resp, err := http.Get(daemonAddr + "/v1/groups")
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Groups []struct {
			Name    string   `json:"name"`
			Pick    int      `json:"pick"`
			Members []string `json:"members"`
		} `json:"groups"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if len(result.Groups) == 0 {
		fmt.Println("No groups defined.")
		return nil
	}

	fmt.Println("Groups")
	fmt.Println("======")
	for _, g := range result.Groups {
		pick := fmt.Sprintf("pick %d", g.Pick)
		if g.Pick == 0 {
			pick = "pick all"
		}
		fmt.Printf("%-20s %-10s %d members\n", g.Name, pick, len(g.Members))
	}

	return nil
}

func cmdGroupsDraw(name string) error {
	resp, err := http.Post(daemonAddr+"/v1/groups/"+url.PathEscape(name)+"/draw", "application/json", nil)
	if err != nil {
		return fmt.Errorf("draw group: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("group %s not found", name)
	}

	var result struct {
		Questions []struct {
			Name string `json:"name"`
			Tag  string `json:"tag"`
			Text string `json:"text"`
		} `json:"questions"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	for i, q := range result.Questions {
		if i > 0 {
			fmt.Println("---")
		}
		fmt.Println(q.Text)
	}

	return nil
}
