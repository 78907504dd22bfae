package config

import (
	"fmt"

	"gopkg.in/alecthomas/kingpin.v2"
)

// ParseCLI layers command-line switches on top of base (or on top of the
// file named by --config, which replaces base). A flag overrides only when
// it differs from its default: an --id of NoAgent or a --wait of 0 leaves
// the existing value in place. It mirrors the original demo's
// read_cfg_cli: --id, --wait, --test and --start select this node's
// identity, startup delay, and what it does once configured.
func ParseCLI(app *kingpin.Application, args []string, base *Config) (*Config, error) {
	id := app.Flag("id", "this agent's id").Default(fmt.Sprint(NoAgent)).Int()
	wait := app.Flag("wait", "seconds to wait before starting a round").Default("0").Int()
	test := app.Flag("test", "run the startup self-test and exit").Bool()
	start := app.Flag("start", "begin MST construction after the wait").Bool()
	iniFile := app.Flag("config", "ini-formatted config file").String()

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	c := base
	if c == nil {
		c = New()
	}
	if *iniFile != "" {
		loaded, err := LoadFile(*iniFile)
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	if *id != NoAgent {
		c.MyID = *id
	}
	if *wait != 0 {
		c.WaitSeconds = *wait
	}
	switch {
	case *test:
		c.Command = CommandTest
	case *start:
		c.Command = CommandStart
	}
	return c, nil
}

// NewApp builds the kingpin application used by cmd/ghs-demo.
func NewApp(name, help string) *kingpin.Application {
	return kingpin.New(name, help)
}
