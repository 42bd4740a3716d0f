package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quatton/paydesk/pkg/psdk"
	"github.com/spf13/cobra"
)

var (
	loginWallet    string
	loginSignature string
	loginNonce     string
	loginUsername  string
	loginPassStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a wallet signature or a password",
	Long: `Log in by signing a one-time message with your wallet.

Without --signature the command requests a nonce, prints the message to
sign and reads the signature from stdin. For scripts, fetch the message
with 'auth nonce' first and pass both --nonce and --signature.

Backends with password accounts also accept --username; the password is
prompted for, or read from stdin with --password-stdin.

Examples:
	# interactive: paste the signature when asked
	payrollctl auth login --wallet 0xabc...

	# non-interactive
	payrollctl auth login --wallet 0xabc... --nonce <NONCE> --signature 0x...

	# password account
	echo "$PAYDESK_PASSWORD" | payrollctl auth login --username boss --password-stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUsername != "" {
			return passwordLogin(cmd)
		}
		if loginPassStdin {
			return errors.New("--password-stdin needs --username")
		}
		if loginSignature != "" && loginNonce == "" {
			return errors.New("--signature needs the --nonce it was made for (see 'payrollctl auth nonce')")
		}

		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			ctx := cmd.Context()
			nonce, signature := loginNonce, loginSignature

			if signature == "" {
				challenge, err := sdk.Auth.RequestNonce(ctx, loginWallet)
				if err != nil {
					return err
				}
				nonce = challenge.Nonce

				fmt.Fprintln(os.Stderr, "Sign the following message with your wallet:")
				fmt.Fprintln(os.Stderr)
				fmt.Fprintln(os.Stderr, challenge.Message)
				fmt.Fprintln(os.Stderr)
				fmt.Fprint(os.Stderr, "Signature: ")

				signature, err = readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading signature: %w", err)
				}
			}

			resp, err := sdk.Auth.WalletLogin(ctx, loginWallet, signature, nonce)
			if err != nil {
				return err
			}

			fmt.Printf("✅ Logged in as %s\n", derefOr(resp.User.Wallet, loginWallet))
			if org, ok := resp.User.ActiveOrg(); ok {
				fmt.Printf("Active org: %s (#%d, %s)\n", org.Name, org.ID, org.Role)
			}
			return nil
		})
	},
}

func passwordLogin(cmd *cobra.Command) error {
	if !loginPassStdin {
		fmt.Fprint(os.Stderr, "Password: ")
	}
	password, err := readLine(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	return withSdk(cmd, func(sdk *psdk.Sdk) error {
		ctx := cmd.Context()
		if _, err := sdk.Auth.Login(ctx, loginUsername, password); err != nil {
			return err
		}

		st, err := sdk.Auth.Status(ctx)
		if err != nil {
			return err
		}
		who := loginUsername
		if st.Wallet != "" {
			who = fmt.Sprintf("%s (%s)", loginUsername, st.Wallet)
		}
		fmt.Printf("✅ Logged in as %s\n", who)
		if st.ActiveOrg != "" {
			fmt.Printf("Active org: #%s\n", st.ActiveOrg)
		}
		return nil
	})
}

var nonceWallet string

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Request a login nonce and print the message to sign",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSdk(cmd, func(sdk *psdk.Sdk) error {
			challenge, err := sdk.Auth.RequestNonce(cmd.Context(), nonceWallet)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(challenge)
			}
			fmt.Printf("Nonce: %s\n\n%s\n", challenge.Nonce, challenge.Message)
			return nil
		})
	},
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	authCmd.AddCommand(loginCmd, nonceCmd)

	loginCmd.Flags().StringVarP(&loginWallet, "wallet", "w", "", "Wallet address (0x...)")
	loginCmd.Flags().StringVarP(&loginSignature, "signature", "s", "", "Signature over the nonce message")
	loginCmd.Flags().StringVar(&loginNonce, "nonce", "", "Nonce the signature was made for")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username of a password account")
	loginCmd.Flags().BoolVar(&loginPassStdin, "password-stdin", false, "Read the password from stdin without prompting")
	loginCmd.MarkFlagsOneRequired("wallet", "username")
	loginCmd.MarkFlagsMutuallyExclusive("wallet", "username")
	loginCmd.MarkFlagsMutuallyExclusive("username", "signature")
	loginCmd.MarkFlagsMutuallyExclusive("username", "nonce")

	nonceCmd.Flags().StringVarP(&nonceWallet, "wallet", "w", "", "Wallet address (0x...)")
	_ = nonceCmd.MarkFlagRequired("wallet")
}
