// Package settings locates and reads the UNBEATABLE [white label]
// system-options.json file and extracts the rhythm tracker position offset.
package settings
