package options

import (
	"fmt"
	"strings"

	"tableflip.dev/jot/pkg/entry"
)

// ModuleOptions
type ModuleOptions struct {
	Module entry.Module
}

var moduleAliases = map[string]entry.Module{
	"journal":  entry.ModuleJournal,
	"journals": entry.ModuleJournal,
	"j":        entry.ModuleJournal,
	"note":     entry.ModuleNote,
	"notes":    entry.ModuleNote,
	"n":        entry.ModuleNote,
	"task":     entry.ModuleTodo,
	"tasks":    entry.ModuleTodo,
	"todo":     entry.ModuleTodo,
	"todos":    entry.ModuleTodo,
	"t":        entry.ModuleTodo,
}

// ModuleForAlias resolves the nouns and single-letter shorthands users type
// on the command line.
func ModuleForAlias(alias string) (entry.Module, error) {
	if m, ok := moduleAliases[strings.ToLower(strings.TrimSpace(alias))]; ok {
		return m, nil
	}
	if m, err := entry.ParseModule(alias); err == nil {
		return m, nil
	}
	return "", fmt.Errorf("unknown module %q, want journal, note or task", alias)
}

// ModuleNouns returns the canonical argument names, for cobra ValidArgs.
func ModuleNouns() []string {
	return []string{"journal", "note", "task"}
}
