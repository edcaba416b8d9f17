package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout holds the host paths and names the inventory is derived from.
type Layout struct {
	PKIAliasDir     string `yaml:"pki_alias_dir"`
	CAConfigFile    string `yaml:"ca_config_file"`
	CACertFile      string `yaml:"ca_cert_file"`
	RAAgentCertFile string `yaml:"ra_agent_cert_file"`
	RAAgentKeyFile  string `yaml:"ra_agent_key_file"`
	HTTPDCertFile   string `yaml:"httpd_cert_file"`
	HTTPDKeyFile    string `yaml:"httpd_key_file"`
	KDCCertFile     string `yaml:"kdc_cert_file"`
	KDCKeyFile      string `yaml:"kdc_key_file"`
	DSServerID      string `yaml:"ds_server_id"`
	DSConfigDir     string `yaml:"ds_config_dir"` // printf template taking the server id
	DSNickname      string `yaml:"ds_nickname"`
	CommandTemplate string `yaml:"command_template"`
}

// DefaultLayout returns the stock paths of an IPA server.
func DefaultLayout() Layout {
	return Layout{
		PKIAliasDir:     "/etc/pki/pki-tomcat/alias",
		CAConfigFile:    "/var/lib/pki/pki-tomcat/conf/ca/CS.cfg",
		CACertFile:      "/etc/ipa/ca.crt",
		RAAgentCertFile: "/var/lib/ipa/ra-agent.pem",
		RAAgentKeyFile:  "/var/lib/ipa/ra-agent.key",
		HTTPDCertFile:   "/var/lib/ipa/certs/httpd.crt",
		HTTPDKeyFile:    "/var/lib/ipa/private/httpd.key",
		KDCCertFile:     "/var/kerberos/krb5kdc/kdc.crt",
		KDCKeyFile:      "/var/kerberos/krb5kdc/kdc.key",
		DSConfigDir:     "/etc/dirsrv/slapd-%s",
		DSNickname:      "Server-Cert",
		CommandTemplate: "/usr/libexec/ipa/certmonger/%s",
	}
}

// DSDatabase returns the directory server certificate database path for
// the configured server id, without a trailing separator.
func (l Layout) DSDatabase() string {
	dir := l.DSConfigDir
	if strings.Contains(dir, "%s") {
		dir = fmt.Sprintf(dir, l.DSServerID)
	}
	return filepath.Clean(dir)
}

// Command formats a renewal helper command line.
func (l Layout) Command(name string) string {
	return fmt.Sprintf(l.CommandTemplate, name)
}

// CAInstalled reports whether the CA subsystem configuration file exists.
func (l Layout) CAInstalled() bool {
	if l.CAConfigFile == "" {
		return false
	}
	_, err := os.Stat(l.CAConfigFile)
	return err == nil
}
