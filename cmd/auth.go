package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"clipsmith/src/infrastructure/integrations/youtube"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize YouTube uploads and cache the oauth token",
	Long: `The auth command walks the installed-app OAuth flow once and stores
the resulting token for the serve command to use.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)

	settingDefaultConfig()
}

func runAuth(cmd *cobra.Command, args []string) error {
	conf, err := youtube.LoadOAuthConfig(viper.GetString("youtube.credentials_file"))
	if err != nil {
		return err
	}

	// Out-of-band flow: print the consent URL, read the code back.
	conf.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	url := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following URL in a browser and authorize the app:\n\n%s\n\n", url)
	fmt.Print("Paste the authorization code: ")

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	tok, err := conf.Exchange(context.Background(), code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	tokenFile := viper.GetString("youtube.token_file")
	if err := youtube.SaveToken(tokenFile, tok); err != nil {
		return err
	}

	fmt.Printf("Token saved to %s\n", tokenFile)
	return nil
}
