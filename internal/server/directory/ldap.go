package directory

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/config"
	"github.com/netsoclabs/memberd/internal/server/creds"
	"github.com/netsoclabs/memberd/internal/server/models"
)

const (
	accountFilter = "(objectClass=account)"

	// loginPasswordLength is the fixed length of the initial account
	// password; members are told to change it on first login.
	loginPasswordLength = 12
)

var accountObjectClasses = []string{"account", "top", "posixAccount", "mailAccount"}

// LDAPRegistry implements Registry against an LDAP server. Each operation
// dials, binds with the service credentials, and closes its connection; the
// directory serializes writes on its side, and the transport timeout is the
// only cancellation mechanism for in-flight operations.
type LDAPRegistry struct {
	addr         string
	bindDN       string
	bindPassword string
	memberBase   string
	searchBase   string
	gid          int
	uidFloor     int
	mailDomain   string
	homeRoot     string
	defaultShell string
	blacklist    map[string]struct{}
	timeout      time.Duration
	issuer       creds.Issuer
	logger       logging.Logger
}

func NewLDAPRegistry(cfg *config.Config, issuer creds.Issuer, logger logging.Logger) *LDAPRegistry {
	blacklist := make(map[string]struct{}, len(cfg.UsernameBlacklist))
	for _, name := range cfg.UsernameBlacklist {
		blacklist[name] = struct{}{}
	}
	return &LDAPRegistry{
		addr:         cfg.LDAPAddr,
		bindDN:       cfg.LDAPBindDN,
		bindPassword: cfg.LDAPBindPassword,
		memberBase:   cfg.LDAPMemberBase,
		searchBase:   cfg.LDAPSearchBase,
		gid:          cfg.MemberGID,
		uidFloor:     cfg.UIDFloor,
		mailDomain:   cfg.MailDomain,
		homeRoot:     cfg.HomeRoot,
		defaultShell: cfg.DefaultShell,
		blacklist:    blacklist,
		timeout:      cfg.DirectoryTimeout,
		issuer:       issuer,
		logger:       logger,
	}
}

func (r *LDAPRegistry) connect() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(r.addr, ldap.DialWithDialer(&net.Dialer{Timeout: r.timeout}))
	if err != nil {
		return nil, fmt.Errorf("dialing directory: %w", err)
	}
	conn.SetTimeout(r.timeout)
	if err := conn.Bind(r.bindDN, r.bindPassword); err != nil {
		conn.Close()
		return nil, fmt.Errorf("binding to directory: %w", err)
	}
	return conn, nil
}

func (r *LDAPRegistry) entryDN(username string) string {
	return fmt.Sprintf("cn=%s,%s", ldap.EscapeDN(username), r.memberBase)
}

func (r *LDAPRegistry) LookupUIDCeiling(ctx context.Context) (int, error) {
	conn, err := r.connect()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		r.memberBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		accountFilter, []string{"uidNumber"}, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return 0, fmt.Errorf("searching member namespace: %w", err)
	}
	return ceilingFromEntries(res.Entries, r.uidFloor), nil
}

// ceilingFromEntries returns the highest parseable uidNumber among entries,
// or floor when there is none.
func ceilingFromEntries(entries []*ldap.Entry, floor int) int {
	ceiling := floor
	for _, entry := range entries {
		n, err := strconv.Atoi(entry.GetAttributeValue("uidNumber"))
		if err != nil {
			continue
		}
		if n > ceiling {
			ceiling = n
		}
	}
	return ceiling
}

func (r *LDAPRegistry) Exists(ctx context.Context, username string) (bool, error) {
	if _, reserved := r.blacklist[username]; reserved {
		return true, nil
	}

	conn, err := r.connect()
	if err != nil {
		return false, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		r.searchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=account)(uid=%s))", ldap.EscapeFilter(username)),
		[]string{"uid"}, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return false, fmt.Errorf("searching for username: %w", err)
	}
	return len(res.Entries) > 0, nil
}

func (r *LDAPRegistry) Create(ctx context.Context, username string) (*models.MemberAccount, string, error) {
	taken, err := r.Exists(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", common.ErrUsernameTaken
	}

	password, err := r.issuer.GeneratePassword(loginPasswordLength, loginPasswordLength)
	if err != nil {
		return nil, "", err
	}
	hash, err := r.issuer.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	// The ceiling scan and the add are not atomic: a concurrent
	// registration can claim the same uidNumber first and the server-side
	// uniqueness constraint rejects our write. Re-derive the ceiling and
	// retry exactly once, then give up cleanly.
	for attempt := 0; ; attempt++ {
		ceiling, err := r.LookupUIDCeiling(ctx)
		if err != nil {
			return nil, "", err
		}

		acct := &models.MemberAccount{
			Username:      username,
			UIDNumber:     ceiling + 1,
			GIDNumber:     r.gid,
			HomeDirectory: fmt.Sprintf("%s/%s", r.homeRoot, username),
			LoginShell:    r.defaultShell,
			PasswordHash:  hash,
			Mail:          fmt.Sprintf("%s@%s", username, r.mailDomain),
		}

		err = r.add(acct)
		if err == nil {
			return acct, password, nil
		}

		if isUniquenessRejection(err) && attempt == 0 {
			taken, exErr := r.Exists(ctx, username)
			if exErr == nil && taken {
				// the other registration that beat us owned this handle
				return nil, "", common.ErrUsernameTaken
			}
			continue
		}
		return nil, "", fmt.Errorf("adding directory entry: %w", err)
	}
}

func (r *LDAPRegistry) add(acct *models.MemberAccount) error {
	conn, err := r.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := ldap.NewAddRequest(r.entryDN(acct.Username), nil)
	req.Attribute("objectClass", accountObjectClasses)
	req.Attribute("cn", []string{acct.Username})
	req.Attribute("uid", []string{acct.Username})
	req.Attribute("uidNumber", []string{strconv.Itoa(acct.UIDNumber)})
	req.Attribute("gidNumber", []string{strconv.Itoa(acct.GIDNumber)})
	req.Attribute("homeDirectory", []string{acct.HomeDirectory})
	req.Attribute("loginShell", []string{acct.LoginShell})
	req.Attribute("mail", []string{acct.Mail})
	req.Attribute("userPassword", []string{acct.PasswordHash})

	return conn.Add(req)
}

// isUniquenessRejection matches the server-side rejections a lost uid or
// handle race produces: a duplicate entry, or a unique-overlay constraint
// violation on uidNumber.
func isUniquenessRejection(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultConstraintViolation)
}

func (r *LDAPRegistry) Delete(ctx context.Context, username string) error {
	conn, err := r.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Del(ldap.NewDelRequest(r.entryDN(username), nil)); err != nil {
		return fmt.Errorf("deleting directory entry: %w", err)
	}
	return nil
}

func (r *LDAPRegistry) UpdatePassword(ctx context.Context, username, password string) error {
	if _, err := r.GetAccount(ctx, username); err != nil {
		return err
	}

	hash, err := r.issuer.HashPassword(password)
	if err != nil {
		return err
	}

	conn, err := r.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := ldap.NewModifyRequest(r.entryDN(username), nil)
	req.Replace("userPassword", []string{hash})
	if err := conn.Modify(req); err != nil {
		return fmt.Errorf("replacing password: %w", err)
	}
	return nil
}

func (r *LDAPRegistry) UpdateShell(ctx context.Context, username, shell string) error {
	if _, err := r.GetAccount(ctx, username); err != nil {
		return err
	}

	conn, err := r.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := ldap.NewModifyRequest(r.entryDN(username), nil)
	req.Replace("loginShell", []string{shell})
	if err := conn.Modify(req); err != nil {
		return fmt.Errorf("replacing login shell: %w", err)
	}
	return nil
}

func (r *LDAPRegistry) GetAccount(ctx context.Context, username string) (*models.MemberAccount, error) {
	conn, err := r.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		r.searchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=account)(uid=%s))", ldap.EscapeFilter(username)),
		[]string{"uid", "uidNumber", "gidNumber", "homeDirectory", "loginShell", "mail", "userPassword"}, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching for account: %w", err)
	}
	if len(res.Entries) != 1 {
		if len(res.Entries) > 1 {
			r.logger.Warn(ctx, "multiple directory entries for one handle", "username", username, "count", len(res.Entries))
		}
		return nil, common.ErrorNotFound
	}
	return accountFromEntry(res.Entries[0]), nil
}

func accountFromEntry(entry *ldap.Entry) *models.MemberAccount {
	uidNumber, _ := strconv.Atoi(entry.GetAttributeValue("uidNumber"))
	gidNumber, _ := strconv.Atoi(entry.GetAttributeValue("gidNumber"))
	return &models.MemberAccount{
		Username:      entry.GetAttributeValue("uid"),
		UIDNumber:     uidNumber,
		GIDNumber:     gidNumber,
		HomeDirectory: entry.GetAttributeValue("homeDirectory"),
		LoginShell:    entry.GetAttributeValue("loginShell"),
		Mail:          entry.GetAttributeValue("mail"),
		PasswordHash:  entry.GetAttributeValue("userPassword"),
	}
}
