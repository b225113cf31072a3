package scoring

import (
	"fmt"
	"strings"
)

// SystemInstruction is sent as the system role where the backend supports one.
const SystemInstruction = "You are an expert technical interviewer. Score answers strictly and return compact JSON."

const maxOutputChars = 1000

const voicePrompt = `Score the candidate's spoken answer.

Question:
---
%s
---

Answer Transcript:
---
%s
---

Return JSON with:
{
  "communication": 0-100,
  "technical": 0-100,
  "completeness": 0-100,
  "red_flags": [strings],
  "summary": "2-3 sentences"
}`

const codePrompt = `Score the candidate's code & reasoning.

Question:
---
%s
---

Code:
---
%s
---

Observed Program Output:
---
%s
---

Hidden-test Correctness: %d%%

Return JSON:
{
  "technical": 0-100,
  "completeness": 0-100,
  "red_flags": [strings],
  "summary": "1-2 sentences of constructive feedback"
}`

// VoicePrompt builds the grading prompt for a spoken answer.
func VoicePrompt(question, transcript string) string {
	return fmt.Sprintf(voicePrompt, strings.TrimSpace(question), strings.TrimSpace(transcript))
}

// CodePrompt builds the grading prompt for a code answer. Output is truncated.
func CodePrompt(question, code, output string, correctness int) string {
	if r := []rune(output); len(r) > maxOutputChars {
		output = string(r[:maxOutputChars])
	}
	return fmt.Sprintf(codePrompt, strings.TrimSpace(question), code, output, clamp(correctness))
}
