package text

import (
	"strings"
	"unicode"
)

// StreamChunkChars is the chunk size used for streamed synthesis.
const StreamChunkChars = 220

// Chunk breaks text into pieces of at most maxChars bytes for incremental
// synthesis. Sentences (ended by . ! ? or a line break) are packed greedily;
// a sentence longer than maxChars is broken between words. A single word
// longer than maxChars becomes its own chunk. maxChars <= 0 disables chunking.
func Chunk(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	p := packer{limit: maxChars}
	for _, sentence := range sentences(text) {
		if len(sentence) <= maxChars {
			p.add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			p.add(word)
		}
	}
	return p.finish()
}

// packer joins pieces with single spaces, starting a new chunk when the next
// piece would overflow the limit.
type packer struct {
	limit  int
	cur    strings.Builder
	chunks []string
}

func (p *packer) add(piece string) {
	if p.cur.Len() > 0 && p.cur.Len()+1+len(piece) > p.limit {
		p.flush()
	}
	if p.cur.Len() > 0 {
		p.cur.WriteByte(' ')
	}
	p.cur.WriteString(piece)
}

func (p *packer) flush() {
	if p.cur.Len() > 0 {
		p.chunks = append(p.chunks, p.cur.String())
		p.cur.Reset()
	}
}

func (p *packer) finish() []string {
	p.flush()
	return p.chunks
}

// sentences returns the trimmed, non-empty sentences of text with their
// terminating punctuation attached. Runs of terminators ("?!", "...") stay
// with the sentence they end.
func sentences(text string) []string {
	var out []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	for i, r := range text {
		if !isTerminator(r) {
			continue
		}
		next := i + 1
		if next < len(text) && isTerminator(rune(text[next])) && text[next] != '\n' {
			continue
		}
		if r != '\n' && next < len(text) && !unicode.IsSpace(rune(text[next])) {
			continue
		}
		emit(text[start:next])
		start = next
	}
	emit(text[start:])
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}
