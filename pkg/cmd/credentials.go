package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telekom/notion-outreach/pkg/config"
)

func NewCredentialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage credentials stored in the OS keyring",
		Long: fmt.Sprintf("Stored credentials are used when OUTREACH_KEYRING=true and the variable is not set.\nKnown keys: %s",
			strings.Join(config.CredentialKeys, ", ")),
	}
	cmd.AddCommand(newCredentialsSetCommand(), newCredentialsDeleteCommand())
	return cmd
}

func newCredentialsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Store a credential; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.credentials == nil {
				return errors.New("no credential store available")
			}
			key := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(rt.Reader()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading value for %s: %w", key, err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if err := rt.credentials.Store(key, value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Stored %s\n", key)
			return nil
		},
	}
}

func newCredentialsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.credentials == nil {
				return errors.New("no credential store available")
			}
			if err := rt.credentials.Delete(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
