package schedule

import (
	"fmt"
	"os"
	"time"

	"github.com/phleudt/mailscheduler/internal/gmail"
	"github.com/phleudt/mailscheduler/internal/types"
)

// DispatchStore is the persistence surface dispatch and reply detection
// write their outcomes to.
type DispatchStore interface {
	DueEmails(now string) ([]*types.Email, error)
	UpdateEmailStatus(id, status, sentAt string) error
	SetEmailThread(id, threadID string) error
	AllRecipients() ([]*types.Recipient, error)
	EmailsByRecipient(recipientID string) ([]*types.Email, error)
	SetRecipientThread(id, threadID string) error
	MarkRecipientReplied(id string) error
	CancelPendingEmails(recipientID string) (int, error)
}

// Dispatcher performs the single-attempt send of due PENDING emails and
// detects replies that end a recipient's sequence.
type Dispatcher struct {
	store DispatchStore
	mail  gmail.Gateway
	quiet bool

	now func() time.Time
}

// NewDispatcher wires a dispatcher over the mail gateway.
func NewDispatcher(store DispatchStore, mail gmail.Gateway, quiet bool) *Dispatcher {
	return &Dispatcher{store: store, mail: mail, quiet: quiet, now: time.Now}
}

// Dispatch sends every PENDING email whose scheduled date has arrived, in
// order. A send rejection is the mail service reporting back: the email is
// marked FAILED and the pass continues.
func (d *Dispatcher) Dispatch(stats *types.DispatchStats) error {
	now := d.now().UTC()
	due, err := d.store.DueEmails(now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("load due emails: %w", err)
	}

	for _, e := range due {
		result, err := d.mail.Send(gmail.Message{
			From:     e.FromAddr,
			To:       e.ToAddr,
			Subject:  e.Subject,
			Body:     e.Body,
			ThreadID: e.ThreadID,
		})
		if err != nil {
			if markErr := d.store.UpdateEmailStatus(e.ID, types.StatusFailed, ""); markErr != nil {
				return fmt.Errorf("mark email %s failed: %w", e.ID, markErr)
			}
			stats.Failed++
			if !d.quiet {
				fmt.Fprintf(os.Stderr, "  ! send to %s: %v\n", e.ToAddr, err)
			}
			continue
		}

		if err := d.store.UpdateEmailStatus(e.ID, types.StatusSent, now.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("mark email %s sent: %w", e.ID, err)
		}
		stats.Sent++

		// First send in a sequence: the mail service just assigned the
		// thread; record it so every later follow-up inherits it.
		if e.ThreadID == "" && result.ThreadID != "" {
			if err := d.store.SetEmailThread(e.ID, result.ThreadID); err != nil {
				return fmt.Errorf("record thread on email %s: %w", e.ID, err)
			}
			if err := d.store.SetRecipientThread(e.RecipientID, result.ThreadID); err != nil {
				return fmt.Errorf("record thread on recipient %s: %w", e.RecipientID, err)
			}
		}
	}
	return nil
}

// CheckReplies asks the mail service whether any tracked conversation has
// grown beyond the messages we sent. A reply flags the recipient and
// cancels their remaining PENDING emails. Per-recipient lookup failures are
// logged and skipped; the reply state converges on a later pass.
func (d *Dispatcher) CheckReplies(stats *types.DispatchStats) error {
	recipients, err := d.store.AllRecipients()
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}

	for _, r := range recipients {
		if r.HasReplied || r.ThreadID == "" {
			continue
		}
		history, err := d.store.EmailsByRecipient(r.ID)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", r.EmailAddress, err)
		}
		sent := 0
		for _, e := range history {
			if e.Status == types.StatusSent {
				sent++
			}
		}
		if sent == 0 {
			continue
		}

		replied, err := d.mail.HasReplies(r.ThreadID, sent)
		if err != nil {
			if !d.quiet {
				fmt.Fprintf(os.Stderr, "  ! reply check for %s: %v\n", r.EmailAddress, err)
			}
			continue
		}
		if !replied {
			continue
		}

		if err := d.store.MarkRecipientReplied(r.ID); err != nil {
			return fmt.Errorf("mark replied %s: %w", r.EmailAddress, err)
		}
		cancelled, err := d.store.CancelPendingEmails(r.ID)
		if err != nil {
			return fmt.Errorf("cancel pending for %s: %w", r.EmailAddress, err)
		}
		stats.Replies++
		stats.Cancelled += cancelled
		if !d.quiet {
			fmt.Printf("  → %s replied, cancelled %d pending\n", r.EmailAddress, cancelled)
		}
	}
	return nil
}
