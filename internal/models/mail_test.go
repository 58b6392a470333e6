package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerAddressDefaultsPortByTLS(t *testing.T) {
	s := &MailServer{Host: "imap.example.com", TLS: true}
	host, port := s.Address()
	require.Equal(t, "imap.example.com", host)
	require.Equal(t, 993, port)

	s.TLS = false
	_, port = s.Address()
	require.Equal(t, 143, port)

	s.Port = 1143
	_, port = s.Address()
	require.Equal(t, 1143, port)
}

func TestFolderProcessable(t *testing.T) {
	f := &MailFolder{Active: true, State: StateDone}
	require.True(t, f.Processable())

	f.State = StateDraft
	require.False(t, f.Processable())

	f.State = StateDone
	f.Active = false
	require.False(t, f.Processable())
}
