// Command darkroom runs the capture-to-save pipeline and its maintenance
// subcommands: the long-running spool watcher, failure inspection, config
// management, and notification testing.
package main
