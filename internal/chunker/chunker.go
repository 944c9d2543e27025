package chunker

import "strings"

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// separators in priority order: paragraph break, line break, word boundary,
// then a hard character cut.
var separators = []string{"\n\n", "\n", " ", ""}

type Splitter struct {
	chunkSize int
	overlap   int
}

func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split cuts text into chunks of at most chunkSize runes, consecutive chunks
// overlapping by up to overlap runes. It prefers the highest-priority
// separator present in the text and only falls back to harder cuts for
// pieces that still exceed the size budget.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	rest := []string{}
	for i, cand := range seps {
		if cand == "" {
			sep = cand
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardCut(text)
	}

	var out []string
	var good []string
	for _, piece := range strings.Split(text, sep) {
		if len([]rune(piece)) <= s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
		out = append(out, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, sep)...)
	}
	return out
}

// hardCut slices at rune granularity: fixed windows of chunkSize with a step
// of chunkSize-overlap, so consecutive windows share exactly overlap runes.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// merge glues separator-split pieces back together greedily up to chunkSize,
// carrying up to overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := len([]rune(sep))
	var docs []string
	var current []string
	total := 0

	flush := func() {
		doc := strings.TrimSpace(strings.Join(current, sep))
		if doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, piece := range pieces {
		plen := len([]rune(piece))
		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}
		if total+plen+extra > s.chunkSize && len(current) > 0 {
			flush()
			for total > s.overlap || (total+plen+extra > s.chunkSize && total > 0) {
				drop := len([]rune(current[0]))
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += plen
		if len(current) > 1 {
			total += sepLen
		}
	}
	flush()
	return docs
}
