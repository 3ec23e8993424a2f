package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sweetpotato0/agentgate/tool"
)

// Toolkit exposes a wallet to the agent. It implements tool.Provider.
type Toolkit struct {
	wallet *Wallet
}

// NewToolkit returns the agent tools backed by w.
func NewToolkit(w *Wallet) *Toolkit {
	return &Toolkit{wallet: w}
}

// Tools implements tool.Provider.
func (k *Toolkit) Tools(ctx context.Context) ([]*tool.Tool, error) {
	if k.wallet == nil {
		return nil, fmt.Errorf("toolkit has no wallet")
	}
	return []*tool.Tool{
		{
			Name:        "get_wallet_details",
			Description: "Get the id, address and network of the agent's wallet.",
			Handler:     k.walletDetails,
		},
		{
			Name: "get_network_info",
			Description: "Get the RPC URL, block explorer, chain id and currency of a network. " +
				"Defaults to the wallet's network.",
			Parameters: []tool.Parameter{
				{Name: "network", Type: "string", Description: "Network name, e.g. " + strings.Join(NetworkNames(), ", ")},
			},
			Handler: k.networkInfo,
		},
	}, nil
}

func (k *Toolkit) walletDetails(ctx context.Context, args map[string]any) (string, error) {
	details := map[string]any{
		"walletId":  k.wallet.ID(),
		"address":   k.wallet.Address(),
		"networkId": k.wallet.NetworkID(),
	}
	if n, ok := k.wallet.Network(); ok {
		details["network"] = n
	}
	return toJSON(details)
}

func (k *Toolkit) networkInfo(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["network"].(string)
	if strings.TrimSpace(name) == "" {
		name = k.wallet.NetworkID()
	}
	n, ok := LookupNetwork(name)
	if !ok {
		return "", fmt.Errorf("network %q is not supported; known networks: %s", name, strings.Join(NetworkNames(), ", "))
	}
	return toJSON(n)
}

func toJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
