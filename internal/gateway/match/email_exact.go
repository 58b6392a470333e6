package match

import (
	"context"

	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

// EmailExact matches a record field exactly against the addresses found in
// the configured email header.
type EmailExact struct {
	base
}

func (EmailExact) Info() Info {
	return Info{
		Key:         "email_exact",
		Name:        "Exact mailadress",
		Description: "Matches a field of the target record exactly against an address in the configured email header, typically 'to' or 'from'.",
		RequiredFields: []string{
			"model_field",
			"mail_field",
		},
	}
}

func (EmailExact) SearchMatches(ctx context.Context, st store.ObjectStore, folder *models.MailFolder, msg *mailparse.ParsedMessage) ([]int64, error) {
	q, ok := exactQuery(folder, msg)
	if !ok {
		return nil, nil
	}
	return st.SearchIDs(ctx, q)
}

// exactQuery builds the equality search shared by the exact-style variants.
// ok is false when the message carries no usable address.
func exactQuery(folder *models.MailFolder, msg *mailparse.ParsedMessage) (store.Query, bool) {
	addresses := msg.Addresses(folder.MailField)
	if len(addresses) == 0 {
		return store.Query{}, false
	}
	return store.Query{
		Model:  folder.Model,
		Field:  folder.ModelField,
		Values: addresses,
		Extra:  folder.ExtraFilter,
		Order:  folder.ModelOrder,
	}, true
}
