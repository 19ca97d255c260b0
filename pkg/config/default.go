// Global database config.
package config

// Name of the database.
const DBName = "wrendb"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// The maximum number of pages that can be in a pager's buffer at once.
const MaxPagesInBuffer = 32

// Name of the DDL trace log kept in the data directory.
const LogFileName = "db.log"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
