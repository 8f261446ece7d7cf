package model

import "time"

// Direction distinguishes mail received by an account from mail it sent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Decision is the operator's verdict on a conversation.
type Decision string

const (
	DecisionNone    Decision = ""
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Placeholder drafts stored when no AI reply is attached to a message.
const (
	NoReplyPlaceholder = "No reply needed."
	DraftUnavailable   = "Draft could not be generated; please write a reply."
)

// Classification is the outcome of the "needs a human reply" stage.
type Classification struct {
	// RequiresReply is true when a draft reply should be prepared.
	RequiresReply bool `json:"requires_reply"`

	// Raw is the unprocessed model answer, kept for debugging.
	Raw string `json:"raw,omitempty"`

	// Fallback is set when the answer was missing or unusable and the
	// fail-open default was applied.
	Fallback bool `json:"fallback,omitempty"`
}

// ExtractedTask is an action item found in a message body by enrichment.
type ExtractedTask struct {
	Title string `json:"title"`
	Date  string `json:"date,omitempty"`
}

// Enrichment is the structured AI metadata attached to a message.
type Enrichment struct {
	Category   string         `json:"category"`
	Urgency    int            `json:"urgency_score"`
	Tags       []string       `json:"tags"`
	Task       *ExtractedTask `json:"task,omitempty"`
	Insight    string         `json:"insight,omitempty"`
	IsProposal bool           `json:"is_proposal"`
}

// AttachmentRef indexes an attachment without holding its bytes. URL points
// at a retrieval endpoint that fetches the part lazily from the mailbox.
type AttachmentRef struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

// Message is a single stored email, inbound or outbound.
type Message struct {
	// Seq is the store insertion order. It breaks ties between messages
	// created at the same instant.
	Seq int64 `json:"seq" db:"seq"`

	// MessageID is the protocol identifier without angle brackets.
	MessageID string `json:"message_id" db:"message_id"`

	// InReplyTo is the parent message identifier, if any.
	InReplyTo string `json:"in_reply_to" db:"in_reply_to"`

	// References is the ordered ancestor chain.
	References []string `json:"references" db:"-"`

	Subject           string `json:"subject" db:"subject"`
	SubjectNormalized string `json:"subject_normalized" db:"subject_normalized"`

	Body     string `json:"body" db:"body"`
	BodyHTML string `json:"body_html" db:"body_html"`

	AccountID string    `json:"account_id" db:"account_id"`
	UserEmail string    `json:"user_email" db:"user_email"`
	From      string    `json:"from" db:"from_addr"`
	FromName  string    `json:"from_name" db:"from_name"`
	To        string    `json:"to" db:"to_addr"`
	Direction Direction `json:"direction" db:"direction"`

	Status     Status         `json:"status" db:"status"`
	Decision   Decision       `json:"decision" db:"decision"`
	Classifier Classification `json:"classifier" db:"-"`
	Enrichment

	ReplyDraft  string          `json:"reply_draft" db:"reply_draft"`
	Forced      bool            `json:"forced" db:"forced"`
	Attachments []AttachmentRef `json:"attachments" db:"-"`
	Embedding   []float32       `json:"embedding,omitempty" db:"-"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	HandledAt *time.Time `json:"handled_at,omitempty" db:"handled_at"`
}

// LinkedIDs returns the identifiers this message points at: the in-reply-to
// parent followed by every reference.
func (m Message) LinkedIDs() []string {
	ids := make([]string, 0, len(m.References)+1)
	if m.InReplyTo != "" {
		ids = append(ids, m.InReplyTo)
	}
	return append(ids, m.References...)
}
