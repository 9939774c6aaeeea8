package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/suryavirkapur/DrivinData/internal/db"
	"github.com/suryavirkapur/DrivinData/internal/version"
)

// runCommand dispatches the non-serving subcommands. It does not return to
// the caller's serving path: every branch either completes or exits.
func runCommand(args []string, dbPath string) {
	switch args[0] {
	case "migrate":
		db.RunMigrateCommand(args[1:], dbPath)
	case "sessions":
		listRecordedSessions(dbPath)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// listRecordedSessions prints the recent trip history, newest first.
func listRecordedSessions(dbPath string) {
	database, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	sessions, err := database.Sessions(50)
	if err != nil {
		log.Fatalf("failed to list sessions: %v", err)
	}

	if len(sessions) == 0 {
		fmt.Println("no recorded sessions")
		return
	}

	for _, s := range sessions {
		end := "(recording)"
		if s.EndTime != nil {
			end = s.EndTime.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%6d  %s  %s\n", s.ID, s.StartTime.Format("2006-01-02 15:04:05"), end)
	}
}

func printUsage() {
	fmt.Println("Usage: drivindata [flags] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate    Manage the database schema (see 'drivindata migrate help')")
	fmt.Println("  sessions   List recorded sessions")
	fmt.Println("  version    Print version information")
	fmt.Println("  help       Show this help")
	fmt.Println()
	fmt.Println("With no command, drivindata records trips and serves the API.")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
