package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btclog/v2"
	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/node"
	"github.com/ellemouton/lnurlpay/zap"
	"github.com/lightninglabs/lndclient"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()

	app.Name = "lnurlpay-server"
	app.Usage = "Serve LNURL-pay and zaps from a lightning node"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Value:   "127.0.0.1:9876",
			Usage:   "listen address for the LNURL web server",
			EnvVars: []string{"LNURLPAY_LISTEN"},
		},
		&cli.StringFlag{
			Name:  "baseurl",
			Value: "http://localhost/",
			Usage: "base url under which the endpoints are " +
				"reachable, e.g. https://example.com/lnurl_api/ " +
				"means the endpoints are reachable as " +
				"https://example.com/lnurl_api/lnurl and " +
				"https://example.com/lnurl_api/invoice",
			EnvVars: []string{"LNURLPAY_BASEURL"},
		},
		&cli.StringFlag{
			Name:    "description",
			Value:   "Gimme money!",
			Usage:   "description to be displayed by the wallet",
			EnvVars: []string{"LNURLPAY_DESCRIPTION"},
		},
		&cli.StringFlag{
			Name: "nostrpubkey",
			Usage: "nostr pubkey (hex or npub) of the zapper, " +
				"enables zaps",
			EnvVars: []string{"LNURLPAY_NOSTRPUBKEY"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Value:   "cln",
			Usage:   "node backend to use: cln or lnd",
			EnvVars: []string{"LNURLPAY_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "cln.rpcfile",
			Value:   "lightning-rpc",
			Usage:   "path to core lightning's rpc socket",
			EnvVars: []string{"LNURLPAY_CLN_RPCFILE"},
		},
		&cli.StringFlag{
			Name:    "lnd.host",
			Value:   "localhost:10009",
			Usage:   "lnd instance rpc address",
			EnvVars: []string{"LNURLPAY_LND_HOST"},
		},
		&cli.StringFlag{
			Name:    "lnd.macaroondir",
			Usage:   "path to lnd's macaroon directory",
			EnvVars: []string{"LNURLPAY_LND_MACAROONDIR"},
		},
		&cli.StringFlag{
			Name:    "lnd.macaroon",
			Value:   "invoice.macaroon",
			Usage:   "macaroon file name inside the macaroon dir",
			EnvVars: []string{"LNURLPAY_LND_MACAROON"},
		},
		&cli.StringFlag{
			Name:    "lnd.tlspath",
			Usage:   "path to lnd's tls cert",
			EnvVars: []string{"LNURLPAY_LND_TLSPATH"},
		},
		&cli.StringFlag{
			Name:    "network",
			Value:   "mainnet",
			Usage:   "the network the node runs on",
			EnvVars: []string{"LNURLPAY_NETWORK"},
		},
		&cli.BoolFlag{
			Name: "verifyinvoice",
			Usage: "decode every invoice returned by the node and " +
				"check its amount and description hash",
			EnvVars: []string{"LNURLPAY_VERIFYINVOICE"},
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Usage:   "serve prometheus metrics on /metrics",
			EnvVars: []string{"LNURLPAY_METRICS"},
		},
		&cli.StringFlag{
			Name:    "loglevel",
			Value:   "info",
			Usage:   "log level: trace, debug, info, warn, error",
			EnvVars: []string{"LNURLPAY_LOGLEVEL"},
		},
	}
	app.Action = run

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lnurlpay-server] %v\n", err)
	os.Exit(1)
}

func run(ctx *cli.Context) error {
	if err := setupLogging(ctx.String("loglevel")); err != nil {
		return err
	}

	network := lndclient.Network(ctx.String("network"))

	cfg := &lnurlpay.Config{
		BaseURL:     ctx.String("baseurl"),
		Description: ctx.String("description"),
		NostrPubKey: ctx.String("nostrpubkey"),
	}
	if ctx.Bool("verifyinvoice") {
		params, err := node.ChainParams(network)
		if err != nil {
			return err
		}
		cfg.InvoiceNetwork = params
	}

	svc, err := lnurlpay.NewServiceConfig(cfg)
	if err != nil {
		return err
	}

	dialer, err := newDialer(ctx, network)
	if err != nil {
		return err
	}

	server, err := lnurlpay.NewServer(&lnurlpay.ServerConfig{
		ListenAddr:    ctx.String("listen"),
		Service:       svc,
		Dialer:        dialer,
		EnableMetrics: ctx.Bool("metrics"),
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(
		ctx.Context, os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return server.Run(sigCtx)
}

func newDialer(ctx *cli.Context, network lndclient.Network) (node.Dialer,
	error) {

	switch backend := ctx.String("backend"); backend {
	case "cln":
		return &node.CLNDialer{
			RPCFile: ctx.String("cln.rpcfile"),
		}, nil

	case "lnd":
		return &node.LndDialer{
			Host:         ctx.String("lnd.host"),
			TLSPath:      ctx.String("lnd.tlspath"),
			MacaroonDir:  ctx.String("lnd.macaroondir"),
			MacaroonFile: ctx.String("lnd.macaroon"),
			Network:      network,
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
}

// setupLogging creates the log backend and hands a sub-logger to every
// package.
func setupLogging(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid log level: %s", level)
	}

	logger := btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout))

	subLoggers := map[string]func(btclog.Logger){
		lnurlpay.Subsystem: lnurlpay.UseLogger,
		zap.Subsystem:      zap.UseLogger,
		node.Subsystem:     node.UseLogger,
	}
	for subsystem, useLogger := range subLoggers {
		l := logger.SubSystem(subsystem)
		l.SetLevel(lvl)
		useLogger(l)
	}

	return nil
}
