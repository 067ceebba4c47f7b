package redact

import (
	"regexp"
	"strings"
)

// InjectionKind is a category of prompt injection
type InjectionKind string

const (
	InjectionPromptLeak          InjectionKind = "system_prompt_leak"
	InjectionRoleManipulation    InjectionKind = "role_manipulation"
	InjectionInstructionOverride InjectionKind = "instruction_override"
	InjectionDelimiter           InjectionKind = "delimiter_attack"
)

// Injection is one injection attempt found in the input
type Injection struct {
	Kind  InjectionKind
	Start int
	End   int
}

type injectionRule struct {
	kind    InjectionKind
	pattern *regexp.Regexp
}

// Organization context is written by customers and pasted into prompts
// verbatim, so phrases that address the model are cut out before sending.
var injectionRules = []injectionRule{
	{InjectionPromptLeak, regexp.MustCompile(`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|commands?)`)},
	{InjectionPromptLeak, regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden)\s+(prompt|instructions?)`)},
	{InjectionRoleManipulation, regexp.MustCompile(`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`)},
	{InjectionRoleManipulation, regexp.MustCompile(`(?i)assume\s+(the\s+)?(role|identity)\s+of`)},
	{InjectionRoleManipulation, regexp.MustCompile(`(?i)pretend\s+(to\s+)?be\s+(a|an)\b`)},
	{InjectionInstructionOverride, regexp.MustCompile(`(?i)disregard\s+(all|previous|above|any)\s+(instructions?|rules|commands?)`)},
	{InjectionInstructionOverride, regexp.MustCompile(`(?i)override\s+(all|previous|system)\s+(instructions?|rules|settings?)`)},
	{InjectionInstructionOverride, regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`)},
	{InjectionDelimiter, regexp.MustCompile(`\[/?(SYSTEM|USER|ASSISTANT)\]`)},
	{InjectionDelimiter, regexp.MustCompile(`<\|(system|user|assistant|end)\|>`)},
	{InjectionDelimiter, regexp.MustCompile(`###\s*(SYSTEM|USER|ASSISTANT|INSTRUCTION)`)},
}

// DetectInjections returns injection attempts in text, ordered by rule
func DetectInjections(text string) []Injection {
	var found []Injection
	for _, r := range injectionRules {
		for _, m := range r.pattern.FindAllStringIndex(text, -1) {
			found = append(found, Injection{Kind: r.kind, Start: m[0], End: m[1]})
		}
	}
	return found
}

// Neutralize replaces injection attempts with a marker and leaves the rest
// of the text untouched
func Neutralize(text string) string {
	if len(DetectInjections(text)) == 0 {
		return text
	}
	out := text
	for _, r := range injectionRules {
		out = r.pattern.ReplaceAllString(out, "[REMOVED]")
	}
	return strings.TrimSpace(out)
}
