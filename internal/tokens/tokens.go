// Package tokens counts prompt length in model tokens.
//
// Counting is a pluggable strategy. The precise strategy uses a tiktoken
// BPE encoding read from rank files compiled into the binary, so counts do
// not depend on network access; the estimate strategy divides the character
// count by four. Both are deterministic and monotonic: appending
// text never lowers the count.
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter returns the length of text in tokens.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

// Count implements Counter.
func (f CounterFunc) Count(text string) int { return f(text) }

// charsPerToken is the rough English average used by the estimate.
const charsPerToken = 4

// Estimate returns ⌊characters / 4⌋. Characters are Unicode code points.
func Estimate(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// EstimateCounter counts with Estimate.
var EstimateCounter Counter = CounterFunc(Estimate)

// BPECounter counts tokens with a tiktoken encoding.
type BPECounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

var offlineLoader sync.Once

// NewBPECounter loads the named tiktoken encoding (for example "cl100k_base")
// from the embedded rank files. Unknown encodings return an error; callers
// fall back to EstimateCounter.
func NewBPECounter(encoding string) (*BPECounter, error) {
	offlineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %s: %w", encoding, err)
	}
	return &BPECounter{encoding: encoding, enc: enc}, nil
}

// Count implements Counter.
func (c *BPECounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Encoding returns the encoding name.
func (c *BPECounter) Encoding() string {
	return c.encoding
}
