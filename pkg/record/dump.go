package record

import "fmt"

// dumpLine formats one Segment's contribution to Dump's diagnostic output.
func dumpLine(index int, s *Segment) string {
	return fmt.Sprintf("segment[%d]: length=%d\n", index, s.Length())
}

// dumpTotal formats Dump's trailing summary line.
func dumpTotal(count, total int) string {
	return fmt.Sprintf("segments=%d total=%d\n", count, total)
}
