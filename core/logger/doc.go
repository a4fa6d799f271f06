// Package logger is a standardized audit log of the commands a shell runs.
//
// Entries are protocol buffer structs encoded as newline delimited JSON so
// they can be read back with ReadJSONLinesLog and summarized into a Report.
package logger
