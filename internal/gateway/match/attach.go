package match

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"

	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

// AttachMail is the shared attach side effect: it creates one message record
// on the matched business record, plus one attachment record per decoded
// file part when the server is configured to keep them. It returns the
// record id used for the post-match action. All strategies delegate their
// HandleMatch to this.
func AttachMail(ctx context.Context, uow store.UnitOfWork, st store.ObjectStore, recordID int64, server *models.MailServer, folder *models.MailFolder, msg *mailparse.ParsedMessage) (int64, error) {
	var authorID *int64
	if id, ok := st.AuthorFor(ctx, folder.Model, recordID); ok {
		authorID = &id
	}
	state := folder.MsgState
	if state == "" {
		state = models.MessageStateReceived
	}
	messageRowID, err := uow.CreateMessage(ctx, store.RecordMessage{
		Model:     folder.Model,
		RecordID:  recordID,
		MessageID: msg.MessageID,
		Subject:   msg.Subject,
		Body:      msg.Body,
		EmailFrom: msg.From,
		AuthorID:  authorID,
		Date:      msg.Date,
		Type:      "email",
		State:     state,
		FolderID:  folder.ID,
	})
	if err != nil {
		return 0, fmt.Errorf("attach mail to %s(%d): %w", folder.Model, recordID, err)
	}
	if server.AttachFiles {
		for _, att := range msg.Attachments {
			// A decoded part without a name or content is malformed;
			// skip it rather than fail the message.
			if att.Name == "" || len(att.Content) == 0 {
				continue
			}
			if _, err := uow.CreateAttachment(ctx, store.Attachment{
				MessageRowID: messageRowID,
				Model:        folder.Model,
				RecordID:     recordID,
				Name:         att.Name,
				ContentType:  att.ContentType,
				Content:      att.Content,
			}); err != nil {
				return 0, fmt.Errorf("attach file %q: %w", att.Name, err)
			}
		}
	}
	return recordID, nil
}

// base carries the HandleMatch shared by all built-in strategies.
type base struct{}

func (base) HandleMatch(ctx context.Context, uow store.UnitOfWork, st store.ObjectStore, recordID int64, server *models.MailServer, folder *models.MailFolder, msg *mailparse.ParsedMessage, _ imap.UID) (int64, error) {
	return AttachMail(ctx, uow, st, recordID, server, folder, msg)
}
