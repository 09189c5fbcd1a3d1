package datasource

import (
	"strings"

	"github.com/goforj/datasource/dscore"
)

// Contract names a high-level handle kind.
type Contract int

const (
	ContractBrowser Contract = iota + 1
	ContractCache
	ContractNavigator
)

var contractNames = map[Contract]string{
	ContractBrowser:   "browser",
	ContractCache:     "cache",
	ContractNavigator: "navigator",
}

func (c Contract) String() string {
	if name, ok := contractNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseContract resolves a contract name case-insensitively.
func ParseContract(name string) (Contract, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range contractNames {
		if n == name {
			return c, nil
		}
	}
	return 0, dscore.NewFail(dscore.StatusUnknownContractorName, "unknown contract %q", name)
}

// Provider is implemented by every handle the registry builds.
type Provider interface {
	Contract() Contract
	// Type returns the backend tag, or "" when the pipeline failed before parsing.
	Type() dscore.Type
	// Err returns the pipeline failure a failed handle carries.
	Err() error
}
