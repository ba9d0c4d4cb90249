package main

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/node"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/urfave/cli/v2"
)

var payRequestCommand = &cli.Command{
	Name:        "pay",
	Usage:       "Pay to LNURL",
	Description: `Pay to a static LNURL, optionally as a nostr zap`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "lnurl",
			Usage: "The LNURL to pay too.",
		},
		&cli.Uint64Flag{
			Name:  "amt",
			Usage: "The amt of millisats to pay",
		},
		&cli.Int64Flag{
			Name:  "maxfee",
			Usage: "max fee to pay for this payment (in sats)",
			Value: 1000,
		},
		&cli.BoolFlag{
			Name:  "notls",
			Usage: "set to true to use http instead of https",
		},
		&cli.StringFlag{
			Name: "zapkey",
			Usage: "nostr secret key (hex or nsec) to sign a zap " +
				"request with",
		},
		&cli.StringFlag{
			Name:  "comment",
			Usage: "content of the zap request",
		},
		&cli.StringSliceFlag{
			Name:  "relay",
			Usage: "relay the zap receipt should be published to",
		},
	},
	Action: payToLNURL,
}

func payToLNURL(ctx *cli.Context) error {
	// LNURL must be specified.
	target := ctx.String("lnurl")
	if target == "" {
		return fmt.Errorf("missing '--lnurl' flag")
	}

	descURL, err := resolveTarget(target, ctx.Bool("notls"))
	if err != nil {
		return err
	}

	// Make a GET request to the decoded LNURL.
	var payResp lnurlpay.PaymentDescriptor
	if err := get(descURL, &payResp); err != nil {
		return err
	}
	if payResp.Tag != lnurlpay.TypePayRequest {
		return fmt.Errorf("unexpected LNURL tag: %s", payResp.Tag)
	}

	meta, err := plainTextMetadata(payResp.Metadata)
	if err != nil {
		return err
	}
	fmt.Printf("Paying to: %s\n", meta)

	// Check if the user specified an amount on the command line. If they
	// did not or if the specified amount is not within the bounds specified
	// in the server response, ask the user to enter a valid amount.
	minSendable, maxSendable := payResp.MinSendable, payResp.MaxSendable
	millisats := lnurlpay.Amount(ctx.Uint64("amt"))
	for millisats < minSendable || millisats > maxSendable {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Enter an amount (in millisatoshis) between "+
			"%d and %d\n", minSendable, maxSendable)

		userInput, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("could not read from console: %w",
				err)
		}

		millisats, err = lnurlpay.ParseAmount(
			strings.TrimSpace(userInput),
		)
		if err != nil {
			fmt.Printf("error parsing input: %v\n", err)
			continue
		}

		if millisats < minSendable || millisats > maxSendable {
			fmt.Printf("Invalid amount. Expected an amount "+
				"between %d and %d, got %d\n", minSendable,
				maxSendable, millisats)
		}
	}

	// The description hash commits to the metadata, or to the zap request
	// if we send one.
	description := payResp.Metadata
	var zapRequest string
	if key := ctx.String("zapkey"); key != "" {
		if !payResp.AllowsNostr || payResp.NostrPubkey == "" {
			return fmt.Errorf("service does not accept zaps")
		}

		evt, err := newZapRequest(
			key, payResp.NostrPubkey, ctx.String("comment"),
			millisats, ctx.StringSlice("relay"),
		)
		if err != nil {
			return err
		}

		zapRequest = evt.String()
		description = zapRequest
	}

	getInvoice, err := callbackURL(payResp.Callback, millisats, zapRequest)
	if err != nil {
		return err
	}

	var invoice lnurlpay.InvoiceResult
	if err := get(getInvoice, &invoice); err != nil {
		return err
	}

	params, err := node.ChainParams(
		lndclient.Network(ctx.String("network")),
	)
	if err != nil {
		return err
	}

	inv, err := zpay32.Decode(invoice.PR, params)
	if err != nil {
		return err
	}

	// Ensure that the invoice commits to what we asked for.
	hash := sha256.Sum256([]byte(description))
	if inv.DescriptionHash == nil ||
		!bytes.Equal(inv.DescriptionHash[:], hash[:]) {

		return fmt.Errorf("invalid invoice description hash")
	}
	if inv.MilliSat == nil || *inv.MilliSat != millisats.MilliSatoshi() {
		return fmt.Errorf("invoice amount does not match request")
	}

	lndClient, err := getLND(ctx)
	if err != nil {
		return fmt.Errorf("could not connect to LND: %w", err)
	}
	defer lndClient.Close()

	res := <-lndClient.Client.PayInvoice(
		ctx.Context, invoice.PR, btcutil.Amount(ctx.Int64("maxfee")),
		nil,
	)

	if res.Err != nil {
		return fmt.Errorf("could not pay invoice: %w", res.Err)
	}

	fmt.Printf("Successful payment! Preimage: %s\n", res.Preimage)

	return nil
}
