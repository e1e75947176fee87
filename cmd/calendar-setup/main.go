package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/xhad/sage/pkg/calendar"
	"github.com/xhad/sage/pkg/config"
	"golang.org/x/oauth2"
)

// One-time interactive OAuth flow. Opens no browser; the user pastes
// the authorization code back in. The resulting token file is what the
// server reads at startup.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		color.Red("failed to load config: %v", err)
		os.Exit(1)
	}

	oauthConfig, err := calendar.LoadOAuthConfig(cfg.Calendar.CredentialsPath)
	if err != nil {
		color.Red("failed to load credentials from %s: %v", cfg.Calendar.CredentialsPath, err)
		fmt.Println("Download an OAuth client JSON from the Google Cloud console first.")
		os.Exit(1)
	}

	authURL := oauthConfig.AuthCodeURL("state-token",
		oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	color.Cyan("Open this URL in your browser and authorize access:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()
	fmt.Print("Paste the authorization code here: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		color.Red("failed to read code: %v", err)
		os.Exit(1)
	}
	code = strings.TrimSpace(code)

	token, err := oauthConfig.Exchange(context.Background(), code)
	if err != nil {
		color.Red("failed to exchange code: %v", err)
		os.Exit(1)
	}

	if err := calendar.SaveToken(cfg.Calendar.TokenPath, token); err != nil {
		color.Red("failed to save token: %v", err)
		os.Exit(1)
	}

	color.Green("Token saved to %s", cfg.Calendar.TokenPath)
	fmt.Println("The server will now schedule meetings on your calendar.")
}
