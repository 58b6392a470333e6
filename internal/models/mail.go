package models

import "time"

// Server and folder confirmation states. A draft entity is never processed;
// the confirm actions perform a live connection/folder check before moving
// an entity to StateDone.
const (
	StateDraft = "draft"
	StateDone  = "done"
)

// Message state tags recorded on created messages.
const (
	MessageStateSent     = "sent"
	MessageStateReceived = "received"
)

// Folder fetch policies deciding which messages count as new.
const (
	FetchPolicyUnseen = "unseen"
	FetchPolicySince  = "since"
)

// MailServer is a configured IMAP endpoint owning a set of folders.
type MailServer struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Host        string `db:"host"`
	Port        int    `db:"port"`
	Username    string `db:"username"`
	Password    string `db:"password"`
	TLS         bool   `db:"tls"`
	State       string `db:"state"`
	FoldersOnly bool   `db:"folders_only"`
	AttachFiles bool   `db:"attach_files"`
	Active      bool   `db:"active"`
}

// Address returns the host:port dial target, defaulting the port by TLS mode.
func (s *MailServer) Address() (string, int) {
	port := s.Port
	if port == 0 {
		if s.TLS {
			port = 993
		} else {
			port = 143
		}
	}
	return s.Host, port
}

// MailFolder is one IMAP mailbox path with matching rules attached.
type MailFolder struct {
	ID             int64  `db:"id"`
	ServerID       int64  `db:"server_id"`
	Sequence       int    `db:"sequence_num"`
	Path           string `db:"path"`
	State          string `db:"state"`
	Active         bool   `db:"active"`
	Model          string `db:"model"`
	ModelField     string `db:"model_field"`
	ModelOrder     string `db:"model_order"`
	MatchAlgorithm string `db:"match_algorithm"`
	MailField      string `db:"mail_field"`
	DeleteMatching bool   `db:"delete_matching"`
	FlagNonmatch   bool   `db:"flag_nonmatching"`
	MatchFirst     bool   `db:"match_first"`
	ExtraFilter    string `db:"extra_filter"`
	MsgState       string `db:"msg_state"`
	ActionID       *int64 `db:"action_id"`
	FetchPolicy    string `db:"fetch_policy"`

	// LastInternalDate is the by-date cursor. It is only advanced after a
	// fully successful folder pass, never mid-pass.
	LastInternalDate *time.Time `db:"last_internal_date"`
}

// Processable reports whether the folder may be scanned at all.
func (f *MailFolder) Processable() bool {
	return f.Active && f.State == StateDone
}
