package match

import (
	"context"
	"strings"

	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

// EmailDomain tries an exact address match first and widens to "any record
// whose field shares the sender's domain" when nothing matched exactly.
// Usually yields multiple matches, so it pairs with first-match-wins and an
// order hint.
type EmailDomain struct {
	base
}

func (EmailDomain) Info() Info {
	return Info{
		Key:         "email_domain",
		Name:        "Domain of mailadress",
		Description: "Matches the domain part of an address in the configured email header against the target field, falling back from an exact address match. Use together with 'Use 1st match' and an order hint.",
		RequiredFields: []string{
			"model_field",
			"mail_field",
			"match_first",
		},
	}
}

func (EmailDomain) SearchMatches(ctx context.Context, st store.ObjectStore, folder *models.MailFolder, msg *mailparse.ParsedMessage) ([]int64, error) {
	q, ok := exactQuery(folder, msg)
	if !ok {
		return nil, nil
	}
	ids, err := st.SearchIDs(ctx, q)
	if err != nil || len(ids) > 0 {
		return ids, err
	}

	var patterns []string
	for _, addr := range q.Values {
		if at := strings.LastIndex(addr, "@"); at >= 0 && at < len(addr)-1 {
			patterns = append(patterns, "%@"+addr[at+1:])
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	q.Op = "like"
	q.Values = patterns
	return st.SearchIDs(ctx, q)
}
