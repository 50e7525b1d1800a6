package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// VerifyResult reports a hash-chain replay over a ledger directory.
// When Valid is false, FailedFile/FailedLine identify the first entry
// that breaks the chain; that entry and everything after it are suspect.
type VerifyResult struct {
	Files      []string `json:"files"`
	Entries    int      `json:"entries"`
	Valid      bool     `json:"valid"`
	FailedFile string   `json:"failedFile,omitempty"`
	FailedLine int      `json:"failedLine,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Verify replays every day file in chain order, recomputing each
// entry's hash from its stored fields and checking the previous-hash
// links. The chain must start from the empty anchor and run unbroken
// across file boundaries. I/O problems are returned as an error;
// tampering is reported in the result, not as an error.
func Verify(dir string) (VerifyResult, error) {
	files, err := dayFiles(dir)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{Valid: true}
	prev := ""

	for _, path := range files {
		result.Files = append(result.Files, filepath.Base(path))
		data, err := os.ReadFile(path)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("read ledger file %s: %w", path, err)
		}

		for i, line := range nonEmptyLines(data) {
			lineNo := i + 1

			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				return result.failed(path, lineNo, fmt.Sprintf("unparseable entry: %v", err)), nil
			}
			if e.PreviousHash != prev {
				return result.failed(path, lineNo, fmt.Sprintf(
					"broken link: previousHash %q, expected %q", e.PreviousHash, prev)), nil
			}
			expected, err := e.chainHash()
			if err != nil {
				return VerifyResult{}, err
			}
			if e.Hash != expected {
				return result.failed(path, lineNo, "stored hash does not match entry contents"), nil
			}

			prev = e.Hash
			result.Entries++
		}
	}

	return result, nil
}

func (r VerifyResult) failed(path string, line int, reason string) VerifyResult {
	r.Valid = false
	r.FailedFile = filepath.Base(path)
	r.FailedLine = line
	r.Reason = reason
	return r
}
