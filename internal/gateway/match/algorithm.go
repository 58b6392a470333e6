// Package match holds the pluggable strategies that map a parsed message to
// candidate business records, plus the process-wide registry they live in.
package match

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"

	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

// ErrUnknownAlgorithm is returned when a folder references an identifier the
// registry does not know. This is a configuration error.
var ErrUnknownAlgorithm = errors.New("unknown match algorithm")

// Info is the static declaration a strategy exposes to the configuration UI:
// a display name, a help blurb, and the folder fields it needs marked
// required or read-only. Runtime matching never consumes these.
type Info struct {
	Key            string
	Name           string
	Description    string
	RequiredFields []string
	ReadonlyFields []string
}

// Algorithm is one interchangeable matching strategy. SearchMatches must not
// mutate state; HandleMatch performs the attach side effect and returns the
// record id the post-match action runs against.
type Algorithm interface {
	Info() Info
	SearchMatches(ctx context.Context, st store.ObjectStore, folder *models.MailFolder, msg *mailparse.ParsedMessage) ([]int64, error)
	HandleMatch(ctx context.Context, uow store.UnitOfWork, st store.ObjectStore, recordID int64, server *models.MailServer, folder *models.MailFolder, msg *mailparse.ParsedMessage, uid imap.UID) (int64, error)
}

// Registry is the process-wide algorithm table, built once at startup and
// read-only afterwards.
type Registry struct {
	algorithms map[string]Algorithm
}

// NewRegistry builds a registry from an explicit set of strategies.
func NewRegistry(algorithms ...Algorithm) *Registry {
	r := &Registry{algorithms: make(map[string]Algorithm, len(algorithms))}
	for _, a := range algorithms {
		r.algorithms[a.Info().Key] = a
	}
	return r
}

// NewDefaultRegistry returns the registry with all built-in strategies.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		&EmailExact{},
		&EmailDomain{},
		&EmailExactSince{},
	)
}

// Get resolves an algorithm by identifier.
func (r *Registry) Get(key string) (Algorithm, error) {
	a, ok := r.algorithms[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, key)
	}
	return a, nil
}

// Infos returns the UI declarations of all registered strategies, sorted by
// identifier.
func (r *Registry) Infos() []Info {
	infos := make([]Info, 0, len(r.algorithms))
	for _, a := range r.algorithms {
		infos = append(infos, a.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}
