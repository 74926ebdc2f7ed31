package audit

import (
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool           `json:"valid"`
	Lines     int            `json:"lines"`
	Head      string         `json:"head,omitempty"`
	Actions   map[string]int `json:"actions,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorLine int            `json:"error_line,omitempty"`
}

// Verify walks a JSONL audit log and checks every prev_hash link. On success
// Head is the hash a next entry must reference, so it can be recorded
// elsewhere and compared later. Actions counts verified entries per action.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	res := VerifyResult{Head: GenesisHash, Actions: map[string]int{}}
	fail := func(line int, format string, args ...any) VerifyResult {
		return VerifyResult{Lines: res.Lines, Error: fmt.Sprintf(format, args...), ErrorLine: line}
	}

	scanner := newScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		n := res.Lines + 1

		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fail(n, "parse error: %v", err)
		}
		switch {
		case entry.PrevHash == res.Head:
		case n == 1:
			return fail(n, "first entry prev_hash is %q, expected genesis hash", entry.PrevHash)
		default:
			return fail(n, "hash mismatch: expected %s, got %s", res.Head, entry.PrevHash)
		}

		res.Lines = n
		res.Head = HashLine(line)
		res.Actions[entry.Action]++
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{Lines: res.Lines, Error: fmt.Sprintf("scan: %v", err)}
	}

	res.Valid = true
	return res
}
