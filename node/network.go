package node

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightninglabs/lndclient"
)

// ChainParams returns the chain parameters of a network name as used by
// lnd ("mainnet", "testnet", "regtest", "simnet" or "signet").
func ChainParams(network lndclient.Network) (*chaincfg.Params, error) {
	switch network {
	case lndclient.NetworkMainnet:
		return &chaincfg.MainNetParams, nil

	case lndclient.NetworkTestnet:
		return &chaincfg.TestNet3Params, nil

	case lndclient.NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil

	case lndclient.NetworkSimnet:
		return &chaincfg.SimNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network: %s", network)
	}
}
