package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer names accepted by NewCounter
const (
	TokenizerApprox = "approx"
	TokenizerCL100k = "cl100k_base"
)

// TokenCounter measures text against the token budget
type TokenCounter interface {
	CountTokens(text string) int
	Name() string
}

// NewCounter returns the counter registered under name
func NewCounter(name string) (TokenCounter, error) {
	switch name {
	case "", TokenizerApprox:
		return ApproxCounter{}, nil
	case TokenizerCL100k:
		return NewTiktokenCounter(TokenizerCL100k)
	}
	return nil, fmt.Errorf("unknown tokenizer %q", name)
}

// ApproxCounter estimates tokens from whitespace-separated words at four tokens per three words
type ApproxCounter struct{}

func (ApproxCounter) CountTokens(text string) int {
	words := len(strings.Fields(text))
	return (words*4 + 2) / 3
}

func (ApproxCounter) Name() string { return TokenizerApprox }

// TiktokenCounter counts BPE tokens with a tiktoken encoding
type TiktokenCounter struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding. The BPE ranks are fetched and cached
// by tiktoken-go on first use.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{name: encoding, enc: enc}, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Name() string { return c.name }
