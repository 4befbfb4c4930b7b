/*
Package log provides Grove's structured logging built on zerolog.

A single global logger is initialized once at startup via Init, then
components derive child loggers with WithComponent/WithHabitID/WithUserID
so every line carries its context. Console output is the default; JSON
output is available for machine consumption.
*/
package log
