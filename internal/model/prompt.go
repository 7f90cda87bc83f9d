package model

import (
	"fmt"
	"strings"
)

const maxBodyChars = 2000

const instructions = `You are the triage engine for a busy medical practice.
Classify the inbound message and respond with a single JSON object with exactly these fields:

"zone": one of "STAT", "TODAY", "THIS_WEEK", "LATER".
  STAT: urgent clinical results, emergencies, critical patient issues.
  TODAY: refills, prior authorizations, referrals, scheduling that cannot wait.
  THIS_WEEK: billing, claims, records requests, compliance.
  LATER: newsletters, marketing, conferences, surveys.
"intent_label": one of "CLINICAL", "BILLING", "ADMIN", "SCHEDULING", "VENDOR", "SPAM".
"risk_score": number from 0.0 (no risk) to 1.0 (patient harm, legal threat, revenue loss).
"summary": a summary of at most twelve words.
"recommended_action": the single next step for staff.
"action_type": one of "reply", "call", "forward", "review", "archive".
"draft_reply": a short professional reply, or null when no reply is needed.
"context_blob": an object with any of patient_name, mrn, dollar_amount, insurance_provider found in the message, or {}.

Output JSON only.`

// Render builds the text sent to the model.
func (p Prompt) Render() string {
	body := p.Body
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nMESSAGE:\n")
	fmt.Fprintf(&b, "Sender: %s\n", p.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", p.Subject)
	fmt.Fprintf(&b, "Body: %s\n", body)

	if p.HeuristicReason != "" {
		fmt.Fprintf(&b, "\nRule engine note: %s\n", p.HeuristicReason)
	}

	return b.String()
}
