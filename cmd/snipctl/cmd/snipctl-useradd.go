// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/snipgallery/pkg/authn"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
	"golang.org/x/term"
)

var useraddUsername string
var useraddSex string
var useraddOfficial bool

var useraddCmd = &cobra.Command{
	Use:     "useradd [--username name] [--official] email",
	Short:   "Create a gallery account",
	Long:    "Create a gallery account.  the password is prompted for on a terminal, otherwise read from the first line of stdin.",
	Args:    cobra.ExactArgs(1),
	PreRunE: preRunSetupStore,
	RunE:    runUseraddCmd,
}

func init() {
	useraddCmd.Flags().StringVarP(&useraddUsername, "username", "u", "", "display name (defaults to the email local part)")
	useraddCmd.Flags().StringVar(&useraddSex, "sex", "", "optional profile field: male, female or other")
	useraddCmd.Flags().BoolVar(&useraddOfficial, "official", false, "mark the account as an official gallery author")
	rootCmd.AddCommand(useraddCmd)
}

func readPassword(stdin io.Reader) (string, error) {
	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		WriteStderr("password: ")
		first, err := term.ReadPassword(int(file.Fd()))
		WriteStderr("\n")
		if err != nil {
			return "", err
		}
		WriteStderr("confirm password: ")
		second, err := term.ReadPassword(int(file.Fd()))
		WriteStderr("\n")
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passwords do not match")
		}
		return string(first), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runUseraddCmd(cmd *cobra.Command, args []string) error {
	password, err := readPassword(WrappedStdin)
	if err != nil {
		return err
	}
	signer, err := authn.LoadOrCreateSigner(filepath.Join(snipbase.GetSnipDataDir(), authn.SessionKeyFile))
	if err != nil {
		return err
	}
	provider := authn.NewProvider(signer)
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()
	user, err := provider.SignUp(ctx, args[0], password, authn.Profile{
		Username:   useraddUsername,
		Sex:        useraddSex,
		IsOfficial: useraddOfficial,
	})
	if err != nil {
		return err
	}
	WriteStdout("created user %s (%s) id:%s\n", user.Username, user.Email, user.ID)
	return nil
}
