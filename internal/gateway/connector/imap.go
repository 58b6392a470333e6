package connector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/gotrs-io/mailgate/internal/models"
)

// Manager dials IMAP/IMAPS servers and hands out one authenticated client
// per folder session.
type Manager struct {
	dialTimeout time.Duration
	logger      *log.Logger
	newClient   func(addr string, tls bool) (rawClient, error)
}

// ManagerOption customizes the connection manager.
type ManagerOption func(*Manager)

// NewManager returns an IMAP connection manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		dialTimeout: 5 * time.Second,
		logger:      log.New(log.Writer(), "[IMAP] ", log.LstdFlags),
	}
	m.newClient = m.dial
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.newClient == nil {
		m.newClient = m.dial
	}
	return m
}

// WithDialTimeout overrides the socket dial timeout.
func WithDialTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.dialTimeout = timeout
		}
	}
}

// WithManagerLogger overrides the logger used for connection diagnostics.
func WithManagerLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func withClientFactory(factory func(addr string, tls bool) (rawClient, error)) ManagerOption {
	return func(m *Manager) {
		m.newClient = factory
	}
}

// Connect dials the server and authenticates. The returned client is owned
// exclusively by the caller, which must Logout it.
func (m *Manager) Connect(ctx context.Context, server *models.MailServer) (Client, error) {
	if server == nil {
		return nil, errors.New("imap connect: server required")
	}
	if server.Host == "" {
		return nil, errors.New("imap connect: server missing host")
	}
	if server.Username == "" {
		return nil, errors.New("imap connect: server missing username")
	}
	host, port := server.Address()
	raw, err := m.newClient(fmt.Sprintf("%s:%d", host, port), server.TLS)
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", server.Name, err)
	}
	if err := raw.Login(server.Username, server.Password).Wait(); err != nil {
		if closeErr := raw.Close(); closeErr != nil {
			m.logger.Printf("close after failed login: %v", closeErr)
		}
		return nil, fmt.Errorf("imap auth %s: %w", server.Name, err)
	}
	return &client{raw: raw}, nil
}

// Test verifies credentials by connecting and logging out again. Used by the
// server confirm action.
func (m *Manager) Test(ctx context.Context, server *models.MailServer) error {
	c, err := m.Connect(ctx, server)
	if err != nil {
		return err
	}
	if err := c.Logout(); err != nil {
		return fmt.Errorf("imap logout %s: %w", server.Name, err)
	}
	return nil
}

func (m *Manager) dial(addr string, useTLS bool) (rawClient, error) {
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: m.dialTimeout}}
	var c *imapclient.Client
	var err error
	if useTLS {
		c, err = imapclient.DialTLS(addr, opts)
	} else {
		c, err = imapclient.DialInsecure(addr, opts)
	}
	if err != nil {
		return nil, err
	}
	return &rawClientWrapper{Client: c}, nil
}

// rawClient mirrors the subset of imapclient.Client commands the gateway
// issues, kept injectable for tests.
type rawClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	List(ref, pattern string, options *imap.ListOptions) listWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type listWaiter interface {
	Collect() ([]*imap.ListData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}

type rawClientWrapper struct{ *imapclient.Client }

func (w *rawClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *rawClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *rawClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *rawClientWrapper) List(ref, pattern string, options *imap.ListOptions) listWaiter {
	return w.Client.List(ref, pattern, options)
}
func (w *rawClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *rawClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *rawClientWrapper) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter {
	return w.Client.Store(numSet, store, options)
}

// client adapts the command/waiter surface into the synchronous Client the
// sessions consume.
type client struct {
	raw rawClient
}

func (c *client) Select(mailbox string) (*imap.SelectData, error) {
	data, err := c.raw.Select(mailbox, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap select %s: %w", mailbox, err)
	}
	return data, nil
}

func (c *client) List() ([]string, error) {
	entries, err := c.raw.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap list: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Mailbox == "" {
			continue
		}
		names = append(names, entry.Mailbox)
	}
	return names, nil
}

func (c *client) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	if criteria == nil {
		criteria = &imap.SearchCriteria{}
	}
	data, err := c.raw.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	return data.AllUIDs(), nil
}

func (c *client) FetchMessage(uid imap.UID) ([]byte, error) {
	opts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{{}},
	}
	buffers, err := c.raw.Fetch(imap.UIDSetNum(uid), opts).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch %d: %w", uid, err)
	}
	for _, buf := range buffers {
		if body := buf.FindBodySection(&imap.FetchItemBodySection{}); body != nil {
			return append([]byte(nil), body...), nil
		}
	}
	return nil, fmt.Errorf("imap fetch %d: no body returned", uid)
}

func (c *client) FetchInternalDate(uid imap.UID) (time.Time, error) {
	opts := &imap.FetchOptions{UID: true, InternalDate: true}
	buffers, err := c.raw.Fetch(imap.UIDSetNum(uid), opts).Collect()
	if err != nil {
		return time.Time{}, fmt.Errorf("imap fetch internaldate %d: %w", uid, err)
	}
	for _, buf := range buffers {
		if !buf.InternalDate.IsZero() {
			return buf.InternalDate, nil
		}
	}
	return time.Time{}, fmt.Errorf("imap fetch internaldate %d: not returned", uid)
}

func (c *client) Store(uid imap.UID, op imap.StoreFlagsOp, flags ...imap.Flag) error {
	store := &imap.StoreFlags{Op: op, Flags: flags}
	if err := c.raw.Store(imap.UIDSetNum(uid), store, nil).Close(); err != nil {
		return fmt.Errorf("imap store %d: %w", uid, err)
	}
	return nil
}

func (c *client) Close() error {
	return c.raw.Close()
}

func (c *client) Logout() error {
	return c.raw.Logout().Wait()
}
