package config

import (
	"encoding/json"
	"os"

	"github.com/netsoclabs/memberd/internal/flagx"
	"github.com/netsoclabs/memberd/internal/timex"
)

// JsonConfig is the DTO used only for reading JSON configuration files.
// Duration fields use timex.Duration so both "30s" strings and integer
// nanoseconds parse. After unmarshalling, non-empty values are copied into
// the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP     string         `json:"endpoint_addr_http"`
	ServerURL            string         `json:"server_url"`
	DatabaseDSN          string         `json:"database_dsn"`
	TokenDBPath          string         `json:"token_db_path"`
	TokenTTL             timex.Duration `json:"token_ttl"`
	SecretKey            string         `json:"secret_key"`
	SessionTokenValidity timex.Duration `json:"session_token_validity"`
	LDAPAddr             string         `json:"ldap_addr"`
	LDAPBindDN           string         `json:"ldap_bind_dn"`
	LDAPBindPassword     string         `json:"ldap_bind_password"`
	LDAPMemberBase       string         `json:"ldap_member_base"`
	LDAPSearchBase       string         `json:"ldap_search_base"`
	DirectoryTimeout     timex.Duration `json:"directory_timeout"`
	MemberGID            int            `json:"member_gid"`
	AdminGID             int            `json:"admin_gid"`
	UIDFloor             int            `json:"uid_floor"`
	MailDomain           string         `json:"mail_domain"`
	HomeRoot             string         `json:"home_root"`
	DefaultShell         string         `json:"default_shell"`
	LoginShells          []string       `json:"login_shells"`
	UsernameBlacklist    []string       `json:"username_blacklist"`
	SMTPAddr             string         `json:"smtp_addr"`
	SMTPUser             string         `json:"smtp_user"`
	SMTPPassword         string         `json:"smtp_password"`
	MailFrom             string         `json:"mail_from"`
	AlertWebhookURL      string         `json:"alert_webhook_url"`
	SSHHost              string         `json:"ssh_host"`
	RegistrationTimeout  timex.Duration `json:"registration_timeout"`
}

// parseJson loads configuration values from an optional JSON file into the
// provided Config. The file path comes from the -c/-config flags; when absent
// no file is loaded. A file that cannot be read or parsed panics: a server
// started with a broken config file should not come up at all.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.ServerURL, c.ServerURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TokenDBPath, c.TokenDBPath)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LDAPAddr, c.LDAPAddr)
	setString(&config.LDAPBindDN, c.LDAPBindDN)
	setString(&config.LDAPBindPassword, c.LDAPBindPassword)
	setString(&config.LDAPMemberBase, c.LDAPMemberBase)
	setString(&config.LDAPSearchBase, c.LDAPSearchBase)
	setString(&config.MailDomain, c.MailDomain)
	setString(&config.HomeRoot, c.HomeRoot)
	setString(&config.DefaultShell, c.DefaultShell)
	setString(&config.SMTPAddr, c.SMTPAddr)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.AlertWebhookURL, c.AlertWebhookURL)
	setString(&config.SSHHost, c.SSHHost)

	setInt(&config.MemberGID, c.MemberGID)
	setInt(&config.AdminGID, c.AdminGID)
	setInt(&config.UIDFloor, c.UIDFloor)

	if c.DirectoryTimeout.Duration != 0 {
		config.DirectoryTimeout = c.DirectoryTimeout.Duration
	}
	if c.TokenTTL.Duration != 0 {
		config.TokenTTL = c.TokenTTL.Duration
	}
	if c.SessionTokenValidity.Duration != 0 {
		config.SessionTokenValidity = c.SessionTokenValidity.Duration
	}
	if c.RegistrationTimeout.Duration != 0 {
		config.RegistrationTimeout = c.RegistrationTimeout.Duration
	}
	if len(c.LoginShells) > 0 {
		config.LoginShells = c.LoginShells
	}
	if len(c.UsernameBlacklist) > 0 {
		config.UsernameBlacklist = c.UsernameBlacklist
	}
}
