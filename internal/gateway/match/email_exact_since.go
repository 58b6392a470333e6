package match

import (
	"context"

	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

// EmailExactSince is the exact match narrowed by a date window: only records
// updated after the folder's by-date cursor are candidates. Meant for
// folders running the "since" fetch policy, where the cursor is maintained.
type EmailExactSince struct {
	base
}

func (EmailExactSince) Info() Info {
	return Info{
		Key:         "email_exact_since",
		Name:        "Exact mailadress, recently updated",
		Description: "Exact address match restricted to records updated after the folder's last scan cursor. Requires the by-date fetch policy.",
		RequiredFields: []string{
			"model_field",
			"mail_field",
		},
		ReadonlyFields: []string{
			"fetch_policy",
		},
	}
}

func (EmailExactSince) SearchMatches(ctx context.Context, st store.ObjectStore, folder *models.MailFolder, msg *mailparse.ParsedMessage) ([]int64, error) {
	q, ok := exactQuery(folder, msg)
	if !ok {
		return nil, nil
	}
	if folder.LastInternalDate != nil {
		since := folder.LastInternalDate.UTC()
		q.Since = &since
	}
	return st.SearchIDs(ctx, q)
}
