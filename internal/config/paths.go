package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// resolve joins a configured directory with the data root unless it is
// already absolute.
func (c *Config) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Paths.DataDir, dir)
}

// RawDir returns the resolved root of the raw download area.
func (c *Config) RawDir() string { return c.resolve(c.Paths.RawDir) }

// ChicagoRawDir returns the directory holding raw Chicago Fed archives.
func (c *Config) ChicagoRawDir() string { return filepath.Join(c.RawDir(), "chicago") }

// FFIECRawDir returns the directory holding raw FFIEC CDR bulk files.
func (c *Config) FFIECRawDir() string { return filepath.Join(c.RawDir(), "ffiec") }

// OutputDir returns the root of the partitioned parquet corpus.
func (c *Config) OutputDir() string { return c.resolve(c.Paths.OutputDir) }

// DictionaryDir returns the directory holding the MDRM dictionary
// artifacts.
func (c *Config) DictionaryDir() string { return c.resolve(c.Paths.DictionaryDir) }

// LogsDir returns the resolved logs directory.
func (c *Config) LogsDir() string { return c.resolve(c.Paths.LogsDir) }

// LogFile returns the resolved log file path.
func (c *Config) LogFile() string {
	if filepath.IsAbs(c.Logging.FilePath) {
		return c.Logging.FilePath
	}
	return filepath.Join(c.LogsDir(), c.Logging.FilePath)
}

// MDRMCSVPath returns the path of the extracted MDRM dictionary CSV.
func (c *Config) MDRMCSVPath() string {
	return filepath.Join(c.DictionaryDir(), "MDRM.csv")
}

// MDRMZipPath returns the path of the downloaded MDRM archive.
func (c *Config) MDRMZipPath() string {
	return filepath.Join(c.DictionaryDir(), "MDRM.zip")
}

// DictionaryCSVPath returns the path of the compiled dictionary's
// human-readable CSV artifact.
func (c *Config) DictionaryCSVPath() string {
	return filepath.Join(c.DictionaryDir(), "data_dictionary.csv")
}

// DictionaryParquetPath returns the path of the compiled dictionary
// lookup table.
func (c *Config) DictionaryParquetPath() string {
	return filepath.Join(c.DictionaryDir(), "data_dictionary.parquet")
}

// EnsureDirectories creates every directory the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.ChicagoRawDir(),
		c.FFIECRawDir(),
		c.OutputDir(),
		c.DictionaryDir(),
		c.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
