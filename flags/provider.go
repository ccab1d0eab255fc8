package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// ProviderFlags configure the provider responder.
func ProviderFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "provider.hotkey",
			Usage: "Hotkey (SS58) the wallet proof is bound to",
		},
		cli.StringFlag{
			Name:  "provider.wallet",
			Usage: "Polygon wallet address",
		},
		cli.StringFlag{
			Name:  "provider.key",
			Usage: "Hex private key of the Polygon wallet",
		},
		cli.StringFlag{
			Name:  "provider.apiurl",
			Usage: "Public API URL advertised to scorers",
		},
		cli.StringFlag{
			Name:  "provider.listen",
			Usage: "Address to serve provider_check on",
			Value: "0.0.0.0:8091",
		},
	}
}
