package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/finbridge/mesh-link-gateway/linkclient"
	"github.com/finbridge/mesh-link-gateway/mesh"
)

const usage = `meshctl drives the account-link flow against a link gateway.

Usage:
  meshctl [flags] connect
  meshctl [flags] pay --to <address> --amount <n> [--asset <sym>] [--network <net>] [--memo <text>] [--2fa <code>]
  meshctl [flags] portfolio [--account <id>] [--type <type>]

Flags:
  --profile <path>       YAML profile file (api_base, client_id, default_access_token)
  --api-base <url>       gateway origin, overrides the profile
  --client-id <id>       vendor client id, overrides the profile
  --access-token <tok>   access token for pay/portfolio, overrides the profile
  --verbose              print the diagnostics log after the command
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "meshctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := pflag.NewFlagSet("meshctl", pflag.ContinueOnError)
	profilePath := global.String("profile", "", "YAML profile file")
	apiBase := global.String("api-base", "", "gateway origin")
	clientID := global.String("client-id", "", "vendor client id")
	accessToken := global.String("access-token", "", "access token")
	verbose := global.Bool("verbose", false, "print the diagnostics log")
	global.SetInterspersed(false)

	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	profile, err := LoadProfile(*profilePath)
	if err != nil {
		return err
	}

	logger := zerolog.Nop()
	if *verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	client := linkclient.NewClient(
		profile.Options(*apiBase, *clientID, *accessToken),
		linkclient.WithLogger(logger),
		linkclient.WithWidgetLauncher(stdinWidgetLauncher()),
	)

	ctx := context.Background()
	command := global.Arg(0)
	commandArgs := global.Args()[1:]

	switch command {
	case "connect":
		err = runConnect(ctx, client)
	case "pay":
		err = runPay(ctx, client, commandArgs)
	case "portfolio":
		err = runPortfolio(ctx, client, commandArgs)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	if *verbose {
		printResults(client)
	}
	return err
}

func runConnect(ctx context.Context, client *linkclient.Client) error {
	if err := client.Connect(ctx, mesh.ProductConnect); err != nil {
		return err
	}
	fmt.Printf("state:        %s\n", client.State())
	fmt.Printf("access token: %s\n", client.AccessToken())
	if accountID := client.AccountID(); accountID != "" {
		fmt.Printf("account id:   %s\n", accountID)
	}
	return nil
}

func runPay(ctx context.Context, client *linkclient.Client, args []string) error {
	flags := pflag.NewFlagSet("pay", pflag.ContinueOnError)
	to := flags.String("to", "", "destination address")
	amount := flags.Float64("amount", 0, "amount to transfer")
	asset := flags.String("asset", "", "asset symbol")
	network := flags.String("network", "", "transfer network")
	memo := flags.String("memo", "", "transfer memo")
	twoFactor := flags.String("2fa", "", "two-factor code")
	if err := flags.Parse(args); err != nil {
		return err
	}

	result, err := client.Pay(ctx, mesh.PayRequest{
		Amount:        *amount,
		ToAddress:     *to,
		Asset:         *asset,
		Network:       *network,
		Memo:          *memo,
		TwoFactorCode: *twoFactor,
	})
	if err != nil {
		return err
	}

	fmt.Printf("status: %s\n", result.Status)
	if result.TxID != "" {
		fmt.Printf("txId:   %s\n", result.TxID)
	}
	return nil
}

func runPortfolio(ctx context.Context, client *linkclient.Client, args []string) error {
	flags := pflag.NewFlagSet("portfolio", pflag.ContinueOnError)
	accountID := flags.String("account", "", "account id")
	portfolioType := flags.String("type", "", "portfolio type")
	if err := flags.Parse(args); err != nil {
		return err
	}

	portfolio, err := client.Portfolio(ctx, mesh.PortfolioRequest{
		AccountID: *accountID,
		Type:      *portfolioType,
	})
	if err != nil {
		return err
	}

	var pretty any
	if err := json.Unmarshal(portfolio, &pretty); err != nil {
		fmt.Println(string(portfolio))
		return nil
	}
	encoded, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

// stdinWidgetLauncher adapts the hosted widget flow to a terminal: it
// prints the link token for the user to complete in a browser, then reads
// the connected-callback payload pasted back as one JSON line. An empty
// line is treated as the widget's exit.
func stdinWidgetLauncher() linkclient.WidgetLauncher {
	return linkclient.WidgetLauncherFunc(func(ctx context.Context, linkToken string, hooks linkclient.Hooks) error {
		fmt.Printf("link token: %s\n", linkToken)
		fmt.Println("Complete the link in your browser, then paste the connected payload (empty line to exit):")

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		if !scanner.Scan() {
			hooks.OnExit(nil)
			return scanner.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			hooks.OnExit(nil)
			return nil
		}

		payload := make(json.RawMessage, len(line))
		copy(payload, line)
		hooks.OnIntegrationConnected(payload)
		hooks.OnExit(nil)
		return nil
	})
}

func printResults(client *linkclient.Client) {
	for _, entry := range client.Results() {
		fmt.Fprintf(os.Stderr, "%s  %-24s %s\n", entry.Timestamp.Format("15:04:05"), entry.Title, string(entry.Payload))
	}
}
