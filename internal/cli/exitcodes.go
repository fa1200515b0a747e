package cli

// Exit codes for the dothttp CLI (spec.md §6). The teacher's five-way split
// (parse/config/network/usage all distinct) collapses to one "something
// was wrong before or instead of running requests" bucket here, since the
// reporter already tells apart "ran and failed" (1) from "couldn't run".
const (
	ExitSuccess     = 0
	ExitTestFailure = 1
	ExitUsageError  = 2
)
