package statement

import (
	"fmt"
	"strings"
)

// Bank codes produced by detection. Codes without a registered config fall
// back to the generic parser.
const (
	BankSBI     = "SBI"
	BankHDFC    = "HDFC"
	BankAxis    = "AXIS"
	BankICICI   = "ICICI"
	BankKotak   = "KOTAK"
	BankGeneric = "GENERIC"
)

// Registry maps bank codes to parser configs. Lookups never fail: an
// unknown code gets the generic config, and a registry without a generic
// config is a programming error.
type Registry struct {
	configs map[string]*Config
}

// NewRegistry returns a registry preloaded with the supported banks and the
// generic fallback.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]*Config)}

	r.Register(&Config{
		BankCode:    BankSBI,
		HeaderWords: []string{"debit", "credit", "balance"},
		FooterMarkers: []string{
			"Page ", "Statement of account", "Account Number", "Branch :", "Address :",
		},
	})

	r.Register(&Config{
		BankCode:        BankHDFC,
		UseBalanceDelta: true,
		FooterMarkers: []string{
			"Page No", "Statement of account", "Account Branch", "Address :",
			"OD Limit", "Currency :", "Registered Office",
		},
	})

	r.Register(&Config{
		BankCode: BankAxis,
		FooterMarkers: []string{
			"Page ", "Statement of account", "Account Number", "Branch :", "Address :",
		},
	})

	r.Register(&Config{
		BankCode:    BankGeneric,
		HeaderWords: []string{"debit", "credit", "balance"},
		FooterMarkers: []string{
			"Page ", "Statement of account", "Registered Office",
		},
	})

	return r
}

// Register adds a config. Registering the same bank code twice is a
// programming error and panics.
func (r *Registry) Register(cfg *Config) {
	code := strings.ToUpper(cfg.BankCode)
	if _, dup := r.configs[code]; dup {
		panic(fmt.Sprintf("statement: parser for %q registered twice", code))
	}
	cfg.BankCode = code
	cfg.compile()
	r.configs[code] = cfg
}

// Get returns the config for a bank code, falling back to the generic
// config. It never returns nil; a registry missing the generic config
// panics here rather than producing nil-dereference noise downstream.
func (r *Registry) Get(code string) *Config {
	if cfg, ok := r.configs[strings.ToUpper(code)]; ok {
		return cfg
	}
	cfg, ok := r.configs[BankGeneric]
	if !ok {
		panic("statement: no generic parser registered")
	}
	return cfg
}
