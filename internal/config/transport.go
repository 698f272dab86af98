package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport types accepted in the "type" key.
const (
	TypeSMTP     = "smtp"
	TypeFile     = "file"
	TypeStdout   = "stdout"
	TypeSES      = "ses"
	TypeGraph    = "graph"
	TypeS3       = "s3"
	TypeSendmail = "sendmail"
	TypeResend   = "resend"
)

// TransportConfig is one entry of the transports list. Exactly one of the
// typed fields is set, matching Type.
type TransportConfig struct {
	Type string
	// OnlyDomains restricts the transport to messages with at least one
	// recipient in these domains. Empty means every message.
	OnlyDomains []string

	SMTP     *SMTPTransport
	File     *FileTransport
	Stdout   *StdoutTransport
	SES      *SESTransport
	Graph    *GraphTransport
	S3       *S3Transport
	Sendmail *SendmailTransport
	Resend   *ResendTransport
}

// SMTPTransport configures delivery to an SMTP relay.
type SMTPTransport struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	Login              string   `yaml:"login"`
	Password           string   `yaml:"password"`
	SSL                Flag     `yaml:"ssl"`
	Auth               *bool    `yaml:"auth"`
	Timeout            Duration `yaml:"timeout"`
	ConnectTimeout     Duration `yaml:"connect_timeout"`
	HelloHost          string   `yaml:"hello_host"`
	CAFile             string   `yaml:"ca_file"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// FileTransport configures saving messages as .eml files.
type FileTransport struct {
	Dir string `yaml:"dir"`
}

// StdoutTransport configures printing messages.
type StdoutTransport struct {
	EML bool `yaml:"eml"`
}

// SESTransport configures AWS SES delivery.
type SESTransport struct {
	Region           string `yaml:"region"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	SessionToken     string `yaml:"session_token"`
	Endpoint         string `yaml:"endpoint"`
	ConfigurationSet string `yaml:"configuration_set"`
	MaxAttempts      int    `yaml:"max_attempts"`
}

// GraphTransport configures Microsoft Graph delivery.
type GraphTransport struct {
	TenantID     string   `yaml:"tenant_id"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Sender       string   `yaml:"sender"`
	Timeout      Duration `yaml:"timeout"`
}

// S3Transport configures archiving to an S3 bucket.
type S3Transport struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// SendmailTransport configures the local sendmail binary.
type SendmailTransport struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// ResendTransport configures the Resend API.
type ResendTransport struct {
	APIKey string `yaml:"api_key"`
}

// Flag is a boolean that also accepts the forms 1/0, yes/no and on/off.
type Flag bool

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Flag) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseFlag(value.Value)
	if value.Kind != yaml.ScalarNode || err != nil {
		return fmt.Errorf("line %d: invalid boolean %q: use true or false", value.Line, value.Value)
	}
	*f = Flag(v)
	return nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// Duration is a time.Duration read either as a Go duration ("30s", "1m")
// or as a whole number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseDuration(value.Value)
	if value.Kind != yaml.ScalarNode || err != nil {
		return fmt.Errorf("line %d: invalid duration %q: use seconds (30) or a Go duration (30s)", value.Line, value.Value)
	}
	*d = Duration(v)
	return nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// UnmarshalYAML reads the type key, then decodes the same mapping into the
// matching typed struct.
func (t *TransportConfig) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Type        string   `yaml:"type"`
		OnlyDomains []string `yaml:"only_domains"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	*t = TransportConfig{Type: head.Type, OnlyDomains: head.OnlyDomains}

	var target any
	switch head.Type {
	case TypeSMTP:
		t.SMTP = &SMTPTransport{}
		target = t.SMTP
	case TypeFile:
		t.File = &FileTransport{}
		target = t.File
	case TypeStdout:
		t.Stdout = &StdoutTransport{}
		target = t.Stdout
	case TypeSES:
		t.SES = &SESTransport{}
		target = t.SES
	case TypeGraph:
		t.Graph = &GraphTransport{}
		target = t.Graph
	case TypeS3:
		t.S3 = &S3Transport{}
		target = t.S3
	case TypeSendmail:
		t.Sendmail = &SendmailTransport{}
		target = t.Sendmail
	case TypeResend:
		t.Resend = &ResendTransport{}
		target = t.Resend
	case "":
		return fmt.Errorf("line %d: transport type is required", value.Line)
	default:
		return fmt.Errorf("line %d: unknown transport type %q", value.Line, head.Type)
	}
	return value.Decode(target)
}

func (t TransportConfig) validate() error {
	switch t.Type {
	case TypeSMTP:
		if t.SMTP.Host == "" {
			return errors.New("host is required")
		}
	case TypeFile:
		if t.File.Dir == "" {
			return errors.New("dir is required")
		}
	case TypeGraph:
		if t.Graph.TenantID == "" || t.Graph.ClientID == "" || t.Graph.ClientSecret == "" {
			return errors.New("tenant_id, client_id and client_secret are required")
		}
	case TypeS3:
		if t.S3.Bucket == "" || t.S3.Region == "" {
			return errors.New("bucket and region are required")
		}
	case TypeResend:
		if t.Resend.APIKey == "" {
			return errors.New("api_key is required")
		}
	}
	return nil
}
