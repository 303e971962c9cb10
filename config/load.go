package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/celestiaorg/docconv/internal/constants"
)

// Load reads the configuration from the given YAML file (optional) and the environment.
// Environment variables use the DOCCONV_ prefix with dots replaced by underscores,
// e.g. DOCCONV_CONVERSION_MAX_DURATION=10m.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docconv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/docconv")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine, an explicit one is not
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.ResolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.public_context", d.Server.PublicContext)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.name", d.Database.Name)
	v.SetDefault("database.ssl_enabled", d.Database.SSLEnabled)
	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("storage.input_path", d.Storage.InputPath)
	v.SetDefault("storage.output_path", d.Storage.OutputPath)
	v.SetDefault("storage.use_temp_dir", d.Storage.UseTempDir)
	v.SetDefault("storage.default_output", d.Storage.DefaultOutput)
	v.SetDefault("storage.upload.type", d.Storage.Upload.Type)
	v.SetDefault("storage.upload.dir", d.Storage.Upload.Dir)
	v.SetDefault("storage.upload.base_url", d.Storage.Upload.BaseURL)
	v.SetDefault("storage.upload.sftp.address", d.Storage.Upload.SFTP.Address)
	v.SetDefault("storage.upload.sftp.user", d.Storage.Upload.SFTP.User)
	v.SetDefault("storage.upload.sftp.password", d.Storage.Upload.SFTP.Password)
	v.SetDefault("storage.upload.sftp.remote_dir", d.Storage.Upload.SFTP.RemoteDir)
	v.SetDefault("storage.upload.sftp.base_url", d.Storage.Upload.SFTP.BaseURL)
	v.SetDefault("storage.upload.sftp.known_hosts", d.Storage.Upload.SFTP.KnownHosts)

	v.SetDefault("preconversion.tool_path", d.Preconversion.ToolPath)
	v.SetDefault("preconversion.timeout", d.Preconversion.Timeout)
	v.SetDefault("preconversion.profile_root", d.Preconversion.ProfileRoot)

	v.SetDefault("conversion.mode", d.Conversion.Mode)
	v.SetDefault("conversion.converter_command", d.Conversion.ConverterCommand)
	v.SetDefault("conversion.worker_command", d.Conversion.WorkerCommand)
	v.SetDefault("conversion.max_duration", d.Conversion.MaxDuration)
	v.SetDefault("conversion.abort_grace", d.Conversion.AbortGrace)
	v.SetDefault("conversion.abort_poll_interval", d.Conversion.AbortPollInterval)
	v.SetDefault("conversion.memory_limit_mb", d.Conversion.MemoryLimitMB)
	v.SetDefault("conversion.max_concurrent", d.Conversion.MaxConcurrent)
	v.SetDefault("conversion.max_queued", d.Conversion.MaxQueued)

	v.SetDefault("progress.address", d.Progress.Address)
	v.SetDefault("notify.address", d.Notify.Address)

	for name, code := range d.ErrorCodes.entries() {
		v.SetDefault("error_codes."+name+".code", code.Code)
		v.SetDefault("error_codes."+name+".message", code.Message)
	}
}
