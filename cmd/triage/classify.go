package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/triage/internal/api"
	"github.com/JaimeStill/triage/internal/store/memory"
	"github.com/JaimeStill/triage/internal/triage"
)

var (
	classifyMsg      triage.Message
	classifyReceived string
	classifyPersist  bool
	classifyJSON     bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a message and show the resulting state vector",
	Long: `Runs a message through the classification pipeline and builds its state vector.
By default the vector is kept in memory and discarded; --persist stores it in PostgreSQL.`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyMsg.GrantID, "grant", "cli", "mailbox grant id")
	f.StringVar(&classifyMsg.SourceMessageID, "message-id", "", "source message id (random when empty)")
	f.StringVar(&classifyMsg.Sender, "from", "", "sender address")
	f.StringVar(&classifyMsg.Subject, "subject", "", "message subject")
	f.StringVar(&classifyMsg.Body, "body", "", "message body")
	f.StringVar(&classifyReceived, "received", "", "received time, RFC 3339 (now when empty)")
	f.BoolVar(&classifyPersist, "persist", false, "store the vector in PostgreSQL")
	f.BoolVar(&classifyJSON, "json", false, "output as JSON")
	classifyCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	msg := classifyMsg
	if msg.SourceMessageID == "" {
		msg.SourceMessageID = uuid.NewString()
	}
	if classifyReceived != "" {
		t, err := time.Parse(time.RFC3339, classifyReceived)
		if err != nil {
			return fmt.Errorf("parse --received: %w", err)
		}
		msg.ReceivedAt = t
	}

	runtime, err := newRuntime()
	if err != nil {
		return err
	}

	var domain *api.Domain
	if classifyPersist {
		domain, err = openDomain(cmd, runtime)
	} else {
		domain, err = api.NewDomainWithStore(runtime, memory.New(runtime.Pagination))
	}
	if err != nil {
		return err
	}

	out, err := domain.Vectors.Ingest(cmd.Context(), msg)
	if err != nil {
		return fmt.Errorf("classify failed: %w", err)
	}

	if classifyJSON {
		return printJSON(cmd, out)
	}

	v := out.Vector
	cmd.Printf("zone:       %s\n", v.Zone)
	cmd.Printf("intent:     %s\n", v.IntentLabel)
	cmd.Printf("owner:      %s\n", v.OwnerRole)
	cmd.Printf("risk:       %.2f\n", v.RiskScore)
	cmd.Printf("confidence: %.2f\n", v.Confidence)
	cmd.Printf("deadline:   %s (tier %d)\n", v.DeadlineAt.Format(time.RFC3339), v.EscalationTier)
	cmd.Printf("fallback:   %t\n", v.Fallback)
	cmd.Printf("received:   %v\n", v.Context["received_at"])
	if v.Reason != "" {
		cmd.Printf("reason:     %s\n", v.Reason)
	}
	if classifyPersist {
		cmd.Printf("vector:     %s (created: %t)\n", v.ID, out.Created)
	}
	return nil
}
