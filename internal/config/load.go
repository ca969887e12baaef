package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. COURTETL_LOG_LEVEL or
// COURTETL_S3_REGION.
const EnvPrefix = "COURTETL"

// NewViper returns a viper instance wired for pipeline files: environment
// overrides with EnvPrefix and the defaults a pipeline file may omit.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("metrics.backend", "none")
	// Nested keys only see env overrides when viper knows them.
	for _, k := range []string{
		"job",
		"s3.region", "s3.endpoint", "s3.access_key_id", "s3.secret_access_key", "s3.session_token",
		"references.people", "references.political_affiliations", "references.dockets", "references.clusters",
		"metrics.pushgateway_url", "metrics.datadog_addr",
	} {
		v.SetDefault(k, "")
	}
	v.SetDefault("s3.path_style", false)
	return v
}

// Load reads a YAML or JSON pipeline file (by extension) and applies
// environment overrides.
func Load(path string) (Pipeline, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Pipeline{}, errors.Wrapf(err, "read config %s", path)
	}
	return Decode(v)
}

// Decode unmarshals the settings held by v.
func Decode(v *viper.Viper) (Pipeline, error) {
	var p Pipeline
	if err := v.Unmarshal(&p); err != nil {
		return Pipeline{}, errors.Wrap(err, "decode config")
	}
	for i := range p.Steps {
		if p.Steps[i].Options == nil {
			p.Steps[i].Options = Options{}
		}
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return p, nil
}
