package main

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/spf13/cobra"
)

var (
	serverName string
	folderPath string
	attachUID  uint32
	recordID   int64
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the mailboxes available on a confirmed server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		server, err := a.servers.GetByName(cmd.Context(), serverName)
		if err != nil {
			return err
		}
		names, err := a.admin.AvailableFolders(cmd.Context(), server)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var confirmServerCmd = &cobra.Command{
	Use:   "confirm-server",
	Short: "Test a server connection and mark it confirmed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		server, err := a.servers.GetByName(cmd.Context(), serverName)
		if err != nil {
			return err
		}
		if err := a.admin.ConfirmServer(cmd.Context(), server); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "server %s confirmed\n", server.Name)
		return nil
	},
}

var confirmFolderCmd = &cobra.Command{
	Use:   "confirm-folder",
	Short: "Check a folder opens on its server and mark it confirmed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		server, err := a.servers.GetByName(cmd.Context(), serverName)
		if err != nil {
			return err
		}
		folder, err := a.folders.GetByPath(cmd.Context(), server.ID, folderPath)
		if err != nil {
			return err
		}
		if err := a.admin.ConfirmFolder(cmd.Context(), server, folder); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "folder %s confirmed\n", folder.Path)
		return nil
	},
}

var setDraftCmd = &cobra.Command{
	Use:   "set-draft",
	Short: "Reset a folder to the draft state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		server, err := a.servers.GetByName(cmd.Context(), serverName)
		if err != nil {
			return err
		}
		folder, err := a.folders.GetByPath(cmd.Context(), server.ID, folderPath)
		if err != nil {
			return err
		}
		return a.admin.SetFolderDraft(cmd.Context(), folder.ID)
	},
}

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the registered match algorithms and their form constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		for _, info := range a.admin.AlgorithmInfos() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Key, info.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", info.Description)
			if len(info.RequiredFields) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  required: %s\n", strings.Join(info.RequiredFields, ", "))
			}
			if len(info.ReadonlyFields) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  readonly: %s\n", strings.Join(info.ReadonlyFields, ", "))
			}
		}
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach one message to one record, bypassing matching",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		server, err := a.servers.GetByName(cmd.Context(), serverName)
		if err != nil {
			return err
		}
		folder, err := a.folders.GetByPath(cmd.Context(), server.ID, folderPath)
		if err != nil {
			return err
		}
		client, err := a.manager.Connect(cmd.Context(), server)
		if err != nil {
			return err
		}
		defer func() { _ = client.Logout() }()
		return a.session.AttachManually(cmd.Context(), client, server, folder, imap.UID(attachUID), recordID)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{foldersCmd, confirmServerCmd, confirmFolderCmd, setDraftCmd, attachCmd} {
		cmd.Flags().StringVar(&serverName, "server", "", "server name")
		_ = cmd.MarkFlagRequired("server")
	}
	for _, cmd := range []*cobra.Command{confirmFolderCmd, setDraftCmd, attachCmd} {
		cmd.Flags().StringVar(&folderPath, "path", "", "folder path, e.g. INBOX.sales")
		_ = cmd.MarkFlagRequired("path")
	}
	attachCmd.Flags().Uint32Var(&attachUID, "uid", 0, "message UID in the folder")
	attachCmd.Flags().Int64Var(&recordID, "record", 0, "target record id")
	_ = attachCmd.MarkFlagRequired("uid")
	_ = attachCmd.MarkFlagRequired("record")

	rootCmd.AddCommand(foldersCmd, confirmServerCmd, confirmFolderCmd, setDraftCmd, algorithmsCmd, attachCmd)
}
