package config

import (
	"flag"
	"os"

	"github.com/netsoclabs/memberd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-k string   path to the SQLite verification-token database
//	-s string   JWT HMAC secret key
//	-l string   LDAP server URL (e.g., "ldap://127.0.0.1:389")
//	-b string   LDAP service bind DN
//	-p string   LDAP service bind password
//	-r string   externally visible server URL used in confirmation links
//	-w string   sysadmin alert webhook URL
//	-m string   mail domain for new accounts
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c/-config flags handled by
// the JSON overlay.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-s", "-l", "-b", "-p", "-r", "-w", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TokenDBPath, "k", config.TokenDBPath, "verification token database path")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LDAPAddr, "l", config.LDAPAddr, "LDAP server URL")
	fs.StringVar(&config.LDAPBindDN, "b", config.LDAPBindDN, "LDAP bind DN")
	fs.StringVar(&config.LDAPBindPassword, "p", config.LDAPBindPassword, "LDAP bind password")
	fs.StringVar(&config.ServerURL, "r", config.ServerURL, "external server URL")
	fs.StringVar(&config.AlertWebhookURL, "w", config.AlertWebhookURL, "alert webhook URL")
	fs.StringVar(&config.MailDomain, "m", config.MailDomain, "mail domain")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
