/*
Package decay maps missed days to a decay tier and recovery requirement.

	daysMissed  tier     completions to recover
	0           healthy  0
	1           warning  1
	2-3         cloudy   2
	>=4         stormy   3

Recovery progress is not a stored counter: Evaluate re-derives it from the
completion log by locating the most recent gap and counting completions
since. Cloudy and stormy habits therefore stay in their tier until the
second or third completion lands, and the derivation survives offline edits
to the log.
*/
package decay
