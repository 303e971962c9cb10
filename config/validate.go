package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return errors.New("database.host is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver '%s' is not supported", c.Database.Driver)
	}

	if c.Storage.InputPath == "" || c.Storage.OutputPath == "" {
		return errors.New("storage.input_path and storage.output_path are required")
	}
	switch c.Storage.DefaultOutput {
	case OutputLocal, OutputRemote:
	default:
		return fmt.Errorf("storage.default_output '%s' must be '%s' or '%s'", c.Storage.DefaultOutput, OutputLocal, OutputRemote)
	}
	switch c.Storage.Upload.Type {
	case UploadNone:
		if c.Storage.DefaultOutput == OutputRemote {
			return errors.New("storage.default_output is 'remote' but no storage.upload.type is configured")
		}
	case UploadDir:
		if c.Storage.Upload.Dir == "" {
			return errors.New("storage.upload.dir is required for the dir uploader")
		}
	case UploadSFTP:
		if c.Storage.Upload.SFTP.Address == "" || c.Storage.Upload.SFTP.User == "" {
			return errors.New("storage.upload.sftp.address and storage.upload.sftp.user are required for the sftp uploader")
		}
	default:
		return fmt.Errorf("storage.upload.type '%s' is not supported", c.Storage.Upload.Type)
	}

	if c.Preconversion.ToolPath == "" {
		return errors.New("preconversion.tool_path is required")
	}
	if c.Preconversion.Timeout <= 0 {
		return errors.New("preconversion.timeout must be positive")
	}

	switch c.Conversion.Mode {
	case ModeInProcess:
	case ModeIsolated:
		if len(c.Conversion.WorkerCommand) == 0 {
			return errors.New("conversion.worker_command is required in isolated mode")
		}
		if c.Progress.Address == "" {
			return errors.New("progress.address is required in isolated mode")
		}
	default:
		return fmt.Errorf("conversion.mode '%s' must be '%s' or '%s'", c.Conversion.Mode, ModeInProcess, ModeIsolated)
	}
	if len(c.Conversion.ConverterCommand) == 0 {
		return errors.New("conversion.converter_command is required")
	}
	if c.Conversion.MaxDuration <= 0 {
		return errors.New("conversion.max_duration must be positive")
	}
	if c.Conversion.AbortGrace < 0 {
		return errors.New("conversion.abort_grace must not be negative")
	}
	if c.Conversion.AbortPollInterval <= 0 {
		return errors.New("conversion.abort_poll_interval must be positive")
	}
	if c.Conversion.MaxConcurrent <= 0 {
		return errors.New("conversion.max_concurrent must be a positive integer")
	}
	if c.Conversion.MaxQueued < 0 {
		return errors.New("conversion.max_queued must not be negative")
	}

	return c.ErrorCodes.Validate()
}
