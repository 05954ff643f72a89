// Package main provides a CLI command for minting preference API bearer
// tokens. Tokens are normally issued by the application embedding the
// dispatcher; this command covers operations and testing.
// Usage: courier-token --recipient N [--admin] [--ttl 24h] [--output json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"courier/internal/app"
	"courier/internal/config"
	hauth "courier/internal/handler/http/auth"
	"courier/internal/observability/logging"
)

// TokenOutput is the JSON output format for a minted token.
type TokenOutput struct {
	Token       string `json:"token"`
	RecipientID int64  `json:"recipient_id"`
	Role        string `json:"role,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

func main() {
	var (
		recipientID  int64
		admin        bool
		ttl          time.Duration
		outputFormat string
	)

	flag.Int64Var(&recipientID, "recipient", 0, "Recipient ID the token acts for (required)")
	flag.BoolVar(&admin, "admin", false, "Grant the admin role (unlocks operational endpoints)")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (0 uses the configured expiry)")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	logger := initLogger()

	if recipientID <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --recipient is required and must be positive\n\n")
		fmt.Fprintf(os.Stderr, "Usage: courier-token --recipient N [--admin] [--ttl 24h] [--output json]\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  courier-token --recipient 42\n")
		fmt.Fprintf(os.Stderr, "  courier-token --recipient 1 --admin --ttl 1h\n")
		os.Exit(1)
	}

	securityConfig, err := config.LoadSecurityConfig(app.Path(app.EnvSecurityConfigPath, app.DefaultSecurityConfigPath))
	if err != nil {
		logger.Error("failed to load security config", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to load security config: %v\n", err)
		os.Exit(1)
	}

	secret, err := securityConfig.JWTSecret()
	if err != nil {
		logger.Error("failed to resolve JWT secret", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to resolve JWT secret: %v\n", err)
		os.Exit(1)
	}

	if ttl <= 0 {
		ttl = securityConfig.TokenTTL()
	}

	claims := hauth.Claims{RecipientID: recipientID}
	if admin {
		claims.Role = hauth.RoleAdmin
	}

	token, err := hauth.IssueToken(secret, claims, ttl)
	if err != nil {
		logger.Error("failed to sign token", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	expiresAt := time.Now().Add(ttl).UTC().Format(time.RFC3339)

	if outputFormat == "json" {
		outputJSON(TokenOutput{
			Token:       token,
			RecipientID: recipientID,
			Role:        claims.Role,
			ExpiresAt:   expiresAt,
		})
		return
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "Recipient %d, expires %s\n", recipientID, expiresAt)
}

// outputJSON prints the minted token in JSON format.
func outputJSON(output TokenOutput) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes a structured logger writing to stderr, keeping
// stdout for the token itself.
func initLogger() *slog.Logger {
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	return logger
}
