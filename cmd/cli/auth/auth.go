package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crucial707/logsink/cmd/cli/client"
	"github.com/crucial707/logsink/cmd/cli/config"
	"github.com/crucial707/logsink/cmd/cli/output"
	"github.com/crucial707/logsink/internal/models"
)

// InitAuth registers account commands (register, login, logout, whoami) on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(registerCmd(), loginCmd(), logoutCmd(), whoamiCmd())
}

// ==========================
// Register
// ==========================
func registerCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptMissing(cmd, &username, &password); err != nil {
				return err
			}

			var user models.User
			err := client.New("").JSON("POST", "/register",
				map[string]string{"username": username, "password": password}, &user)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %s registered (id %d). You can now log in.\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

// ==========================
// Login
// ==========================
func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an access token locally",
		Long:  "Exchange username and password for a bearer token and store it in ~/.logctl_token (or LOGCTL_TOKEN_FILE).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptMissing(cmd, &username, &password); err != nil {
				return err
			}

			var tok struct {
				AccessToken string `json:"access_token"`
				TokenType   string `json:"token_type"`
			}
			form := url.Values{"username": {username}, "password": {password}}
			if err := client.New("").Form("/token", form, &tok); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if tok.AccessToken == "" {
				return errors.New("login succeeded but no token returned")
			}

			if err := config.SaveToken(tok.AccessToken); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Login successful. Token stored locally.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

// ==========================
// Logout
// ==========================
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the locally stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := config.RemoveToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No user logged in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// ==========================
// Whoami
// ==========================
func whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the account the stored token belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Authenticated()
			if err != nil {
				return err
			}

			var user models.User
			if err := c.JSON("GET", "/users/me", nil, &user); err != nil {
				return err
			}

			if output.WantJSON(cmd) {
				return output.RenderJSON(cmd.OutOrStdout(), user)
			}
			output.RenderUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
	output.AddJSONFlag(cmd)
	return cmd
}

// promptMissing asks for username and password on stdin when the flags were not given.
func promptMissing(cmd *cobra.Command, username, password *string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	if *username == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Username: ")
		v, err := readLine(in)
		if err != nil {
			return err
		}
		*username = v
	}
	if *password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		v, err := readLine(in)
		if err != nil {
			return err
		}
		*password = v
	}
	if *username == "" || *password == "" {
		return errors.New("username and password are required")
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
