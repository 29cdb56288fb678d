package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mdtasks/internal/auth"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage web UI users in the auth file",
	}
	cmd.AddCommand(newUserListCmd(a), newUserAddCmd(a), newUserRemoveCmd(a))
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := auth.LoadFile(a.cfg.AuthFilePath())
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "no users")
				return nil
			}
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no users")
				return nil
			}
			for _, name := range users.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, users[name].Role)
			}
			return nil
		},
	}
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		roleName      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a user or update an existing user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if err := auth.ValidateUserName(name); err != nil {
				return err
			}
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err
			}
			path := a.cfg.AuthFilePath()

			var password string
			if passwordStdin {
				password, err = readPasswordLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			} else {
				if exists, err := userExists(path, name); err != nil {
					return err
				} else if exists {
					ok, err := promptYesNo(fmt.Sprintf("User %q exists. Update password? [y/N]: ", name))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(os.Stderr, "no changes made")
						return nil
					}
				}
				password, err = promptPassword("Password: ")
				if err != nil {
					return err
				}
				confirm, err := promptPassword("Confirm: ")
				if err != nil {
					return err
				}
				if password != confirm {
					return errors.New("passwords do not match")
				}
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if err := auth.UpsertUser(path, name, hash, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "updated %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&roleName, "role", string(auth.RoleEditor), "user role: editor or viewer")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	return cmd
}

func newUserRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.AuthFilePath()
			if err := auth.RemoveUser(path, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "updated %s\n", path)
			return nil
		},
	}
}

func userExists(path, name string) (bool, error) {
	users, err := auth.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := users[name]
	return ok, nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal, use --password-stdin")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}

func promptYesNo(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}
