// Package composer turns stored memories into conversation context.
//
// A Composer reads a teacher's memory records, renders the confident ones
// into a compact text block, and prepends that block to the conversation
// as a system message so the chat model can personalize its replies.
package composer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/brightclass/teachmem/pkg/llm"
	"github.com/brightclass/teachmem/pkg/memory"
)

// DefaultMinConfidence excludes shaky facts from composed context.
const DefaultMinConfidence = 0.7

// contextHeader opens the memory-derived system message.
const contextHeader = "What you remember about this teacher:"

// Composer composes conversation context from one teacher's memories.
//
// Example:
//
//	comp := composer.New(client)
//	result := comp.Compose(ctx, "teacher_001", messages)
//	reply, err := provider.Reply(ctx, result.Messages)
type Composer struct {
	memories      *memory.Client
	minConfidence float64
}

// Option configures a Composer.
type Option func(*Composer)

// WithMinConfidence sets the confidence floor for records included in
// composed context (default DefaultMinConfidence).
func WithMinConfidence(min float64) Option {
	return func(c *Composer) {
		c.minConfidence = min
	}
}

// New creates a Composer reading from the given memory client.
func New(memories *memory.Client, opts ...Option) *Composer {
	c := &Composer{
		memories:      memories,
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of one composition.
type Result struct {
	// Messages is the conversation with the memory-derived system message
	// prepended. When no context was composed it is the input unchanged.
	Messages []llm.Message

	// ContextText is the rendered memory block, empty when the teacher has
	// no qualifying memories.
	ContextText string

	// Applied lists the records that contributed to ContextText, in the
	// order they were rendered.
	Applied []*memory.Record
}

// Compose builds personalized context for a conversation.
//
// It fetches the owner's live records at or above the confidence floor,
// renders them grouped by memory type, and prepends the block as a
// system message. The original message order is preserved.
//
// Compose never fails: a teacher with no qualifying memories, and any
// retrieval error (which is logged), both yield the input conversation
// unchanged with an empty context. A chat request must not die because
// its memory lookup did.
func (c *Composer) Compose(ctx context.Context, ownerID string, messages []llm.Message) *Result {
	result := &Result{Messages: messages}

	records, err := c.memories.GetMany(ctx, ownerID,
		memory.WithMinConfidence(c.minConfidence))
	if err != nil {
		log.Printf("teachmem: compose: failed to load memories for %s: %v", ownerID, err)
		return result
	}
	if len(records) == 0 {
		return result
	}

	contextText, applied := render(records)
	if contextText == "" {
		return result
	}

	composed := make([]llm.Message, 0, len(messages)+1)
	composed = append(composed, llm.Message{
		Role:    llm.RoleSystem,
		Content: contextText,
	})
	composed = append(composed, messages...)

	result.Messages = composed
	result.ContextText = contextText
	result.Applied = applied
	return result
}

// section groups records of related memory types under one heading.
type section struct {
	heading string
	types   []memory.Type
}

var sections = []section{
	{"Preferences", []memory.Type{memory.TypePreference}},
	{"Facts", []memory.Type{memory.TypeContext}},
	{"Skills and patterns", []memory.Type{memory.TypeSkill, memory.TypePattern}},
}

// render lays the records out as one line per section, facts within a
// section joined by commas. Sections with no records are omitted.
func render(records []*memory.Record) (string, []*memory.Record) {
	byType := make(map[memory.Type][]*memory.Record)
	for _, record := range records {
		byType[record.Type] = append(byType[record.Type], record)
	}

	var lines []string
	var applied []*memory.Record
	for _, sec := range sections {
		var facts []string
		for _, t := range sec.types {
			for _, record := range byType[t] {
				facts = append(facts, fmt.Sprintf("%s: %s",
					humanizeKey(record.Key), record.Value.Text()))
				applied = append(applied, record)
			}
		}
		if len(facts) > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", sec.heading, strings.Join(facts, ", ")))
		}
	}
	if len(lines) == 0 {
		return "", nil
	}

	return contextHeader + "\n" + strings.Join(lines, "\n"), applied
}

// humanizeKey turns "grade_levels" into "grade levels".
func humanizeKey(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
