package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "testbankd.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "config":
		err = cmdConfig()
	case "check":
		err = cmdCheck(os.Args[2:])
	case "questions":
		err = cmdQuestions(os.Args[2:])
	case "groups":
		err = cmdGroups(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "reload":
		err = cmdReload()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("testbank %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Testbank - Question Bank and Grader for Student Code

Usage:
  testbank <command> [arguments]

Setup Commands:
  init            Initialize Testbank (first-time setup)
  config          Show current configuration

Daemon Commands:
  start           Start the Testbank daemon
  stop            Stop the Testbank daemon
  status          Show daemon status
  logs            View daemon logs
  reload          Reload the daemon's question bank

Grading Commands:
  check           Grade submission files against the question bank

Bank Commands:
  questions list  List questions in the bank
  questions show  Show the rendered text of a question
  groups list     List question groups
  groups draw     Draw questions from a group
  export          Export the bank as a zip of rendered questions

Analytics Commands:
  stats           Show bank statistics and recent attempts

Other:
  help            Show this help message
  version         Show version information

Examples:
  testbank start                     # Start daemon
  testbank check solution.go         # Grade a tagged submission
  testbank check -tag @Sum sum.go    # Grade against one question
  testbank questions show @Sum       # Show a question's text
  testbank export questions.zip      # Export rendered questions`)
}
