// Command hashpw prints a bcrypt hash for ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/hashpw 'my admin password'
//	echo -n 'my admin password' | go run ./cmd/hashpw
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ariefcatur/go-groupbuy/internal/auth"
	"github.com/spf13/cobra"
)

var cost int

var rootCmd = &cobra.Command{
	Use:          "hashpw [password]",
	Short:        "Hash an admin password with bcrypt",
	Long:         `Print the bcrypt hash to put in ADMIN_PASSWORD_HASH. Without an argument the password is read from stdin.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runHash,
}

func init() {
	rootCmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (0 = library default)")
}

func runHash(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
