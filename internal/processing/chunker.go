package processing

import (
	"regexp"
	"strings"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

var paragraphSep = regexp.MustCompile(`\n{2,}`)

// ChunkText splits documentation into paragraph chunks and limits their size.
func ChunkText(text string) []string {
	paras := paragraphSep.Split(text, -1)
	var out []string
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, splitLong(p, chunkSize, chunkOverlap)...)
	}
	return out
}

// splitLong cuts on rune boundaries so multi-byte docs (Chinese Flink docs are common) stay valid UTF-8.
func splitLong(s string, max, overlap int) []string {
	runes := []rune(s)
	if len(runes) <= max {
		return []string{s}
	}
	var res []string
	for i := 0; i < len(runes); i += max - overlap {
		end := i + max
		if end > len(runes) {
			end = len(runes)
		}
		res = append(res, strings.TrimSpace(string(runes[i:end])))
		if end == len(runes) {
			break
		}
	}
	return res
}
