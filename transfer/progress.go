package transfer

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// progressLine formats a byte/file progress counter for a log line or
// detail string, e.g. "142 files, 3.4 MB".
func progressLine(files int, bytes int64) string {
	return fmt.Sprintf("%d file%s, %s", files, plural(files), humanize.Bytes(uint64(bytes)))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
