package publishers

import (
	"fmt"
	"strings"
)

// Sink types accepted in the sinks file.
const (
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
	TypeHTTP   = "http"
)

const (
	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// PublisherConfig declares one network log sink.
type PublisherConfig struct {
	ID      string                 `json:"id" yaml:"id"`
	Type    string                 `json:"type" yaml:"type"`
	Enabled *bool                  `json:"enabled" yaml:"enabled"`
	SQS     *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
	HTTP    *HTTPPublisherConfig   `json:"http" yaml:"http"`
}

// AWSCredentials optionally pins static credentials instead of the default chain.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

// SQSPublisherConfig targets an SQS queue.
type SQSPublisherConfig struct {
	QueueURL    string         `json:"uri" yaml:"uri"`
	Region      string         `json:"region" yaml:"region"`
	Credentials AWSCredentials `json:"credentials" yaml:"credentials"`
}

// SNSPublisherConfig targets an SNS topic.
type SNSPublisherConfig struct {
	TopicARN    string         `json:"topic_arn" yaml:"topic_arn"`
	Region      string         `json:"region" yaml:"region"`
	Credentials AWSCredentials `json:"credentials" yaml:"credentials"`
}

// PubSubPublisherConfig targets a Google Cloud Pub/Sub topic.
type PubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig targets a collector endpoint.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnabledValue reports the enabled flag; sinks are on unless disabled.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// normalized returns a copy with trimmed fields and defaults applied.
// Nested blocks are copied so the caller's config is left untouched.
func (cfg PublisherConfig) normalized() PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.SQS != nil {
		c := *cfg.SQS
		trimAll(&c.QueueURL, &c.Region)
		c.Credentials = c.Credentials.trimmed()
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		trimAll(&c.TopicARN, &c.Region)
		c.Credentials = c.Credentials.trimmed()
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		trimAll(&c.ProjectID, &c.Topic, &c.CredentialsFile)
		cfg.PubSub = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		trimAll(&c.URL, &c.Method)
		c.Method = strings.ToUpper(c.Method)
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		c.Headers = nonEmptyHeaders(c.Headers)
		cfg.HTTP = &c
	}
	return cfg
}

// validate checks that the block matching Type carries its required fields.
func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return fmt.Errorf("id is required")
	}

	var missing []string
	require := func(field, value string) {
		if value == "" {
			missing = append(missing, cfg.Type+"."+field)
		}
	}

	switch cfg.Type {
	case "":
		return fmt.Errorf("sink %q: type is required", cfg.ID)
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("sink %q: sqs block is required", cfg.ID)
		}
		require("uri", cfg.SQS.QueueURL)
		require("region", cfg.SQS.Region)
		if err := cfg.SQS.Credentials.validate(); err != nil {
			return fmt.Errorf("sink %q: sqs.%w", cfg.ID, err)
		}
	case TypeSNS:
		if cfg.SNS == nil {
			return fmt.Errorf("sink %q: sns block is required", cfg.ID)
		}
		require("topic_arn", cfg.SNS.TopicARN)
		require("region", cfg.SNS.Region)
		if err := cfg.SNS.Credentials.validate(); err != nil {
			return fmt.Errorf("sink %q: sns.%w", cfg.ID, err)
		}
	case TypePubSub:
		if cfg.PubSub == nil {
			return fmt.Errorf("sink %q: pubsub block is required", cfg.ID)
		}
		require("project_id", cfg.PubSub.ProjectID)
		require("topic", cfg.PubSub.Topic)
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("sink %q: http block is required", cfg.ID)
		}
		require("url", cfg.HTTP.URL)
	default:
		return fmt.Errorf("sink %q: unknown type %q", cfg.ID, cfg.Type)
	}

	if len(missing) > 0 {
		return fmt.Errorf("sink %q: missing %s", cfg.ID, strings.Join(missing, ", "))
	}
	return nil
}

func (c AWSCredentials) trimmed() AWSCredentials {
	trimAll(&c.AccessKeyID, &c.SecretAccessKey, &c.SessionToken)
	return c
}

// validate requires the access key and secret to be set together.
func (c AWSCredentials) validate() error {
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("credentials need both access_key_id and secret_access_key")
	}
	return nil
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// nonEmptyHeaders drops headers whose name or value is blank.
func nonEmptyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
