package client

import (
	"regexp"
	"strings"
	"sync"

	"github.com/fogbed/iotanet/pkg/core"
)

// Keytool output is a human-oriented table whose layout shifts between
// releases. Scraping is deliberately fenced into this file: the address shape
// is stable even when the table is not.
var (
	addressPattern   = regexp.MustCompile(`0x[a-fA-F0-9]{64}`)
	publicKeyPattern = regexp.MustCompile(`[A-Za-z0-9+/]{43,}={0,2}`)
	tableChars       = strings.NewReplacer("│", " ", "┃", " ", "|", " ", "╭", " ", "╮", " ", "╰", " ", "╯", " ", "─", " ")
)

// ParseKeytoolAddress extracts the first account address from keytool or
// client CLI output.
func ParseKeytoolAddress(output string) (string, error) {
	m := addressPattern.FindString(tableChars.Replace(output))
	if m == "" {
		return "", core.ClientConfigError{Msg: "no address found in keytool output"}
	}
	return m, nil
}

// ParseKeytoolPublicKey extracts the first base64 public key from keytool
// output. Best effort; an empty string with no error means none was printed.
func ParseKeytoolPublicKey(output string) (string, error) {
	for _, line := range strings.Split(tableChars.Replace(output), "\n") {
		if !strings.Contains(strings.ToLower(line), "key") {
			continue
		}
		if m := publicKeyPattern.FindString(line); m != "" {
			return m, nil
		}
	}
	return "", nil
}

// Account is one generated client account.
type Account struct {
	Alias   string
	Address string
}

// Accounts tracks generated accounts by alias, preserving insertion order.
type Accounts struct {
	mu      sync.Mutex
	order   []string
	byAlias map[string]Account
}

// NewAccounts creates an empty account tracker.
func NewAccounts() *Accounts {
	return &Accounts{byAlias: make(map[string]Account)}
}

// Add records an account; a repeated alias overwrites the previous entry.
func (a *Accounts) Add(acct Account) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.byAlias[acct.Alias]; !seen {
		a.order = append(a.order, acct.Alias)
	}
	a.byAlias[acct.Alias] = acct
}

// Get returns the account under alias, if any.
func (a *Accounts) Get(alias string) (Account, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.byAlias[alias]
	return acct, ok
}

// All returns every account in insertion order.
func (a *Accounts) All() []Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Account, 0, len(a.order))
	for _, alias := range a.order {
		out = append(out, a.byAlias[alias])
	}
	return out
}
