package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/cli"
)

// Version is provided at compile time
var Version = "dev"

func main() {
	app := kingpin.New("safeguard-onelogin", "OneLogin MFA mediation for Safeguard privileged sessions")
	app.Version(Version)

	p := cli.ConfigureGlobals(app)
	cli.ConfigureAuthenticateCommand(app, p)
	cli.ConfigureFactorsCommand(app, p)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
