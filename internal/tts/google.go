package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultGoogleURL = "https://translate.google.com/translate_tts"

	// googleChunkRunes is the longest text the endpoint accepts per request.
	googleChunkRunes = 200

	DefaultChunkTimeout = 30 * time.Second
)

// GoogleProvider uses the Translate speech endpoint. Text is sent in short
// chunks and the MP3 responses are concatenated into one file.
type GoogleProvider struct {
	BaseURL string
	HTTP    *http.Client

	// ChunkTimeout bounds one request including its body; zero means
	// DefaultChunkTimeout.
	ChunkTimeout time.Duration
}

func NewGoogleProvider(baseURL string, hc *http.Client) *GoogleProvider {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleProvider{BaseURL: baseURL, HTTP: hc, ChunkTimeout: DefaultChunkTimeout}
}

func (p *GoogleProvider) Synthesize(ctx context.Context, text, lang, outPath string) error {
	if lang == "" {
		lang = "en"
	}
	chunks := Chunk(text, googleChunkRunes)
	if len(chunks) == 0 {
		return fmt.Errorf("nothing to synthesize")
	}

	var audio bytes.Buffer
	for i, c := range chunks {
		data, err := p.fetchChunk(ctx, c, lang, i, len(chunks))
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(data)
	}
	return writeFile(outPath, audio.Bytes())
}

func (p *GoogleProvider) fetchChunk(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	timeout := p.ChunkTimeout
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Google TTS failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio")
	}
	return data, nil
}

// Chunk splits text into pieces of at most n runes. It prefers sentence
// ends, then word breaks, and cuts mid-word only when a word is too long.
func Chunk(text string, n int) []string {
	words := strings.Fields(text)
	var (
		chunks []string
		cur    []rune
	)
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			chunks = append(chunks, s)
		}
		cur = cur[:0]
	}

	for _, w := range words {
		r := []rune(w)
		for len(r) > n {
			flush()
			chunks = append(chunks, string(r[:n]))
			r = r[n:]
		}

		need := len(r)
		if len(cur) > 0 {
			need++
		}
		if len(cur)+need > n {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, r...)

		// Close the chunk at a sentence end once it is reasonably full.
		if endsSentence(r) && len(cur) >= n/2 {
			flush()
		}
	}
	flush()
	return chunks
}

func endsSentence(word []rune) bool {
	if len(word) == 0 {
		return false
	}
	return strings.ContainsRune(".!?…。", word[len(word)-1])
}
