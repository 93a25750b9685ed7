package services

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Directory errors
var (
	ErrDirectoryDisabled   = errors.New("directory authentication is not enabled")
	ErrDirectoryIncomplete = errors.New("directory configuration is incomplete")
)

// ADConfig is the directory connection configuration held in settings
type ADConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerURL     string `json:"server_url"`
	Domain        string `json:"domain"`
	BaseDN        string `json:"base_dn"`
	DefaultRole   string `json:"default_role"`
	DefaultBranch string `json:"default_branch"`
}

// DirectoryIdentity is a resolved directory user
type DirectoryIdentity struct {
	Username string
	FullName string
	Email    string
	Groups   []string
}

// DirectoryService authenticates users against a Windows domain
// controller over LDAP
type DirectoryService struct {
	dialTimeout time.Duration
}

// NewDirectoryService creates a new directory service
func NewDirectoryService() *DirectoryService {
	return &DirectoryService{dialTimeout: 10 * time.Second}
}

// Authenticate binds to the directory with the supplied credentials and
// resolves the account's attributes. A nil error with a non-nil
// identity means the directory accepted the password. Callers treat any
// error here as "try local auth instead"; the directory failure never
// reaches the end user.
func (s *DirectoryService) Authenticate(username, password string, cfg ADConfig) (*DirectoryIdentity, error) {
	if !cfg.Enabled {
		return nil, ErrDirectoryDisabled
	}
	if cfg.ServerURL == "" || cfg.Domain == "" {
		return nil, ErrDirectoryIncomplete
	}

	conn, err := ldap.DialURL(cfg.ServerURL, ldap.DialWithDialer(&net.Dialer{Timeout: s.dialTimeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to reach directory server: %w", err)
	}
	defer conn.Close()

	clean := cleanUsername(username)
	if err := conn.NTLMBind(cfg.Domain, clean, password); err != nil {
		// Some servers reject NTLM; retry with a simple UPN bind
		if bindErr := conn.Bind(fmt.Sprintf("%s@%s", clean, cfg.Domain), password); bindErr != nil {
			log.Printf("⚠️ Directory bind failed for user %s: %v", clean, err)
			return nil, fmt.Errorf("directory bind failed: %w", err)
		}
	}

	identity := &DirectoryIdentity{
		Username: clean,
		FullName: clean,
		Groups:   []string{},
	}
	if cfg.BaseDN == "" {
		return identity, nil
	}

	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(clean)),
		[]string{"sAMAccountName", "displayName", "mail", "memberOf"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil || len(res.Entries) == 0 {
		// Bind succeeded, so the credentials are good even when the
		// attribute search returns nothing
		return identity, nil
	}

	entry := res.Entries[0]
	if v := entry.GetAttributeValue("sAMAccountName"); v != "" {
		identity.Username = v
	}
	if v := entry.GetAttributeValue("displayName"); v != "" {
		identity.FullName = v
	}
	identity.Email = entry.GetAttributeValue("mail")
	identity.Groups = entry.GetAttributeValues("memberOf")
	return identity, nil
}

// TestConnection verifies the server is reachable by reading the root
// DSE anonymously. It does not validate credentials.
func (s *DirectoryService) TestConnection(cfg ADConfig) error {
	if cfg.ServerURL == "" {
		return ErrDirectoryIncomplete
	}
	conn, err := ldap.DialURL(cfg.ServerURL, ldap.DialWithDialer(&net.Dialer{Timeout: s.dialTimeout}))
	if err != nil {
		return fmt.Errorf("failed to reach directory server: %w", err)
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=*)",
		[]string{"supportedLDAPVersion"},
		nil,
	)
	if _, err := conn.Search(req); err != nil {
		return fmt.Errorf("directory root query failed: %w", err)
	}
	return nil
}

// cleanUsername strips DOMAIN\ and @realm decorations so the bare
// account name remains
func cleanUsername(username string) string {
	u := strings.ReplaceAll(username, "\\", "/")
	parts := strings.Split(u, "/")
	u = parts[len(parts)-1]
	return strings.Split(u, "@")[0]
}
