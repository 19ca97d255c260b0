package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wrendb/pkg/config"
	"wrendb/pkg/database"
	"wrendb/pkg/repl"

	"github.com/google/uuid"
)

// Listens for SIGINT or SIGTERM and closes the database cleanly.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		db.Close()
		os.Exit(0)
	}()
}

// Start the database.
func main() {
	// Set up flags.
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var dbFlag = flag.String("db", "data/", "DB folder")
	flag.Parse()

	// Open the db.
	db, err := database.Open(*dbFlag)
	if err != nil {
		panic(err)
	}

	// Setup close conditions.
	defer db.Close()
	setupCloseHandler(db)

	// Combine the REPLs and run.
	prompt := config.GetPrompt(*promptFlag)
	r, err := repl.CombineRepls([]*repl.REPL{database.DatabaseRepl(db)})
	if err != nil {
		fmt.Println(err)
		return
	}
	r.Run(uuid.New(), prompt, nil, nil)
}
