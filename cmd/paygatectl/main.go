// Command paygatectl signs and verifies gateway payloads offline: webhook
// bodies, checkout redirect URLs, action tokens and portal links.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/feedloop/paygate/internal/config"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/spf13/pflag"
)

const usage = `usage: paygatectl <command> [flags]

commands:
  sign-webhook   print the X-Signature for a webhook body (file or stdin)
  sign-url       append a redirect signature to a URL
  verify-url     verify a signed redirect URL and print its fields
  token          mint an action token for an action and user
  link           mint a signed portal link
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	secret     string
	productID  string
}

func (g *globals) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "config.yaml", "Path to config file")
	fs.StringVar(&g.secret, "secret", "", "Signing key (overrides config)")
	fs.StringVar(&g.productID, "product-id", "", "Product id (overrides config)")
}

func (g *globals) load() (*config.Config, error) {
	cfg, err := config.LoadWithPath(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.secret != "" {
		cfg.Gateway.SecretKey = g.secret
	}
	if g.productID != "" {
		cfg.Gateway.ProductID = g.productID
	}
	if len(cfg.Gateway.SecretKey) < config.MinSecretKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d characters", config.MinSecretKeyLength)
	}
	return cfg, nil
}

func run(cmd string, args []string, stdin io.Reader, stdout io.Writer) error {
	var g globals
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	g.register(fs)

	switch cmd {
	case "sign-webhook":
		file := fs.StringP("file", "f", "-", "Body file, - for stdin")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cfg, err := g.load()
		if err != nil {
			return err
		}
		body, err := readBody(*file, stdin)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, services.NewHMACService(cfg.Gateway.SecretKey).Sign(body))
		return nil

	case "sign-url", "verify-url":
		proxy := fs.String("proxy-url", "", "Public origin the platform signed (overrides config)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("exactly one URL argument is required")
		}
		cfg, err := g.load()
		if err != nil {
			return err
		}
		if *proxy != "" {
			cfg.Gateway.ProxyURL = *proxy
		}
		verifier, err := services.NewRedirectVerifier(services.NewHMACService(cfg.Gateway.SecretKey), cfg.Gateway.ProxyURL)
		if err != nil {
			return err
		}
		if cmd == "sign-url" {
			fmt.Fprintln(stdout, verifier.SignURL(fs.Arg(0)))
			return nil
		}
		info := verifier.Verify(fs.Arg(0))
		if info == nil {
			return errors.New("redirect signature is invalid or fields are missing")
		}
		return printJSON(stdout, info)

	case "token":
		action := fs.StringP("action", "a", "", "Action scope, e.g. invoice_5")
		user := fs.StringP("user", "u", "", "User id")
		expiry := fs.IntP("expiry", "e", -1, "Expiry in minutes (default from config)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cfg, err := g.load()
		if err != nil {
			return err
		}
		tokens := newTokens(cfg)
		minutes := *expiry
		if minutes < 0 {
			minutes = tokens.DefaultExpiryMinutes()
		}
		token, err := tokens.CreateActionTokenWithExpiry(*action, *user, minutes)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, token)
		return nil

	case "link":
		action := fs.StringP("action", "a", "", "Portal action: get_invoice, update_billing, cancel_subscription, apply_coupon")
		user := fs.StringP("user", "u", "", "User id")
		resource := fs.StringP("resource", "r", "", "Invoice or subscription id")
		expiry := fs.IntP("expiry", "e", -1, "Expiry in minutes (default from config)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cfg, err := g.load()
		if err != nil {
			return err
		}
		links, err := services.NewLinkBuilder(newTokens(cfg), cfg.Gateway.PublicURL)
		if err != nil {
			return err
		}
		link, err := links.ActionURL(models.ActionName(*action), *user, *resource, *expiry)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, link)
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newTokens(cfg *config.Config) *services.ActionTokenService {
	return services.NewActionTokenService(services.NewHMACService(cfg.Gateway.SecretKey), cfg.Gateway.ProductID,
		services.WithDefaultExpiry(cfg.Gateway.TokenExpiryMinutes))
}

func readBody(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
