package wallet

import (
	"sort"
	"strings"
)

// Network describes an EVM chain the wallet can be bound to.
type Network struct {
	Name           string `json:"name"`
	RPCURL         string `json:"rpcUrl"`
	ExplorerURL    string `json:"explorerUrl"`
	ChainID        int64  `json:"chainId"`
	CurrencySymbol string `json:"currencySymbol"`
	Testnet        bool   `json:"testnet"`
}

// TxURL links a transaction hash to the network's block explorer.
func (n Network) TxURL(hash string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash
}

// Networks is the registry of known networks keyed by name.
var Networks = map[string]Network{
	"Sonic Blaze Testnet": {
		Name:           "Sonic Blaze Testnet",
		RPCURL:         "https://rpc.blaze.soniclabs.com",
		ExplorerURL:    "https://testnet.sonicscan.org",
		ChainID:        57054,
		CurrencySymbol: "S",
		Testnet:        true,
	},
}

// LookupNetwork finds a network by name, ignoring case and surrounding
// whitespace.
func LookupNetwork(name string) (Network, bool) {
	if n, ok := Networks[name]; ok {
		return n, true
	}
	name = strings.TrimSpace(name)
	for key, n := range Networks {
		if strings.EqualFold(key, name) {
			return n, true
		}
	}
	return Network{}, false
}

// NetworkNames returns the registered network names, sorted.
func NetworkNames() []string {
	names := make([]string, 0, len(Networks))
	for name := range Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
