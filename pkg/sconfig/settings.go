// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package sconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/render/isolation"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

const SettingsFile = "settings.json"

const (
	ConfigKey_WebListen = "web:listen"

	ConfigKey_RenderIsolation       = "render:isolation"
	ConfigKey_RenderScriptTimeoutMs = "render:scripttimeoutms"

	ConfigKey_PreviewCardHeight   = "preview:cardheight"
	ConfigKey_PreviewDetailHeight = "preview:detailheight"
	ConfigKey_PreviewDebounceMs   = "preview:debouncems"

	ConfigKey_BlobBackend    = "blob:backend"
	ConfigKey_BlobBucket     = "blob:bucket"
	ConfigKey_BlobRegion     = "blob:region"
	ConfigKey_BlobProfile    = "blob:profile"
	ConfigKey_BlobSignSecret = "blob:signsecret"

	ConfigKey_AuthTokenTTLHours = "auth:tokenttlhours"
)

const (
	BlobBackendLocal = blobstore.BackendLocal
	BlobBackendS3    = blobstore.BackendS3
)

type SettingsType struct {
	WebListen string `json:"web:listen,omitempty" jsonschema:"description=host:port the web server listens on"`

	RenderIsolation       string `json:"render:isolation,omitempty" jsonschema:"enum=none,enum=rewrite,enum=shadow,enum=frame"`
	RenderScriptTimeoutMs int    `json:"render:scripttimeoutms,omitempty" jsonschema:"description=time limit for headless snippet scripts"`

	PreviewCardHeight   int `json:"preview:cardheight,omitempty"`
	PreviewDetailHeight int `json:"preview:detailheight,omitempty"`
	PreviewDebounceMs   int `json:"preview:debouncems,omitempty"`

	BlobBackend    string `json:"blob:backend,omitempty" jsonschema:"enum=local,enum=s3"`
	BlobBucket     string `json:"blob:bucket,omitempty"`
	BlobRegion     string `json:"blob:region,omitempty"`
	BlobProfile    string `json:"blob:profile,omitempty" jsonschema:"description=shared aws config profile"`
	BlobSignSecret string `json:"blob:signsecret,omitempty" jsonschema:"description=hmac secret for local signed urls"`

	AuthTokenTTLHours int `json:"auth:tokenttlhours,omitempty"`
}

type ConfigError struct {
	File string `json:"file"`
	Err  string `json:"err"`
}

func (e ConfigError) String() string {
	return fmt.Sprintf("%s: %s", e.File, e.Err)
}

type FullConfigType struct {
	Settings     SettingsType  `json:"settings"`
	ConfigErrors []ConfigError `json:"configerrors,omitempty"`
}

func DefaultSettings() SettingsType {
	return SettingsType{
		WebListen:             "127.0.0.1:8190",
		RenderIsolation:       string(isolation.DefaultStrategy),
		RenderScriptTimeoutMs: 250,
		PreviewCardHeight:     192,
		PreviewDetailHeight:   300,
		PreviewDebounceMs:     200,
		BlobBackend:           BlobBackendLocal,
		AuthTokenTTLHours:     24 * 7,
	}
}

func (s SettingsType) Isolation() isolation.Strategy {
	strategy, err := isolation.ParseStrategy(s.RenderIsolation)
	if err != nil {
		return isolation.DefaultStrategy
	}
	return strategy
}

func (s SettingsType) DebounceDuration() time.Duration {
	return time.Duration(s.PreviewDebounceMs) * time.Millisecond
}

func (s SettingsType) ScriptTimeout() time.Duration {
	return time.Duration(s.RenderScriptTimeoutMs) * time.Millisecond
}

func (s SettingsType) TokenTTL() time.Duration {
	return time.Duration(s.AuthTokenTTLHours) * time.Hour
}

func (s SettingsType) BlobConfig(localDir string) blobstore.Config {
	return blobstore.Config{
		Backend:  s.BlobBackend,
		LocalDir: localDir,
		Secret:   s.BlobSignSecret,
		S3:       blobstore.S3Opts{Bucket: s.BlobBucket, Region: s.BlobRegion, Profile: s.BlobProfile},
	}
}

func GetSettingsPath(configDir string) string {
	return filepath.Join(configDir, SettingsFile)
}

// ReadFullConfig reads settings from the default config dir.
func ReadFullConfig() FullConfigType {
	return ReadFullConfigFromDir(snipbase.GetSnipConfigDir())
}

// ReadFullConfigFromDir layers settings.json over the defaults.  a missing
// file is not an error.  bad values are reported and replaced by defaults.
func ReadFullConfigFromDir(configDir string) FullConfigType {
	rtn := FullConfigType{Settings: DefaultSettings()}
	fileName := GetSettingsPath(configDir)
	barr, err := os.ReadFile(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		applyEnvOverrides(&rtn.Settings)
		return rtn
	}
	if err != nil {
		rtn.ConfigErrors = append(rtn.ConfigErrors, ConfigError{File: SettingsFile, Err: err.Error()})
		applyEnvOverrides(&rtn.Settings)
		return rtn
	}
	rtn.ConfigErrors = append(rtn.ConfigErrors, decodeSettings(barr, &rtn.Settings)...)
	rtn.ConfigErrors = append(rtn.ConfigErrors, validateSettings(&rtn.Settings)...)
	applyEnvOverrides(&rtn.Settings)
	return rtn
}

func decodeSettings(barr []byte, settings *SettingsType) []ConfigError {
	if len(bytes.TrimSpace(barr)) == 0 {
		return nil
	}
	var m map[string]any
	err := json.Unmarshal(barr, &m)
	if err != nil {
		return []ConfigError{{File: SettingsFile, Err: fmt.Sprintf("parse error: %v", err)}}
	}
	var md mapstructure.Metadata
	dconfig := &mapstructure.DecoderConfig{
		Result:   settings,
		TagName:  "json",
		Metadata: &md,
	}
	decoder, err := mapstructure.NewDecoder(dconfig)
	if err != nil {
		return []ConfigError{{File: SettingsFile, Err: err.Error()}}
	}
	var rtn []ConfigError
	err = decoder.Decode(m)
	if err != nil {
		rtn = append(rtn, ConfigError{File: SettingsFile, Err: err.Error()})
	}
	sort.Strings(md.Unused)
	for _, key := range md.Unused {
		rtn = append(rtn, ConfigError{File: SettingsFile, Err: fmt.Sprintf("unknown key %q", key)})
	}
	return rtn
}

func validateSettings(s *SettingsType) []ConfigError {
	defaults := DefaultSettings()
	var rtn []ConfigError
	bad := func(key string, format string, args ...any) {
		rtn = append(rtn, ConfigError{File: SettingsFile, Err: fmt.Sprintf("%s: %s", key, fmt.Sprintf(format, args...))})
	}
	if _, err := isolation.ParseStrategy(s.RenderIsolation); err != nil {
		bad(ConfigKey_RenderIsolation, "%v", err)
		s.RenderIsolation = defaults.RenderIsolation
	}
	if s.BlobBackend != BlobBackendLocal && s.BlobBackend != BlobBackendS3 {
		bad(ConfigKey_BlobBackend, "must be %q or %q", BlobBackendLocal, BlobBackendS3)
		s.BlobBackend = defaults.BlobBackend
	}
	if s.BlobBackend == BlobBackendS3 && s.BlobBucket == "" {
		bad(ConfigKey_BlobBucket, "required when %s is %q", ConfigKey_BlobBackend, BlobBackendS3)
		s.BlobBackend = BlobBackendLocal
	}
	positive := []struct {
		key string
		val *int
		def int
	}{
		{ConfigKey_RenderScriptTimeoutMs, &s.RenderScriptTimeoutMs, defaults.RenderScriptTimeoutMs},
		{ConfigKey_PreviewCardHeight, &s.PreviewCardHeight, defaults.PreviewCardHeight},
		{ConfigKey_PreviewDetailHeight, &s.PreviewDetailHeight, defaults.PreviewDetailHeight},
		{ConfigKey_AuthTokenTTLHours, &s.AuthTokenTTLHours, defaults.AuthTokenTTLHours},
	}
	for _, p := range positive {
		if *p.val <= 0 {
			bad(p.key, "must be positive, got %d", *p.val)
			*p.val = p.def
		}
	}
	if s.PreviewDebounceMs < 0 {
		bad(ConfigKey_PreviewDebounceMs, "must not be negative")
		s.PreviewDebounceMs = defaults.PreviewDebounceMs
	}
	return rtn
}

func applyEnvOverrides(s *SettingsType) {
	if listen := snipbase.GetListenOverride(); listen != "" {
		s.WebListen = listen
	}
}

// WriteDefaultSettings creates settings.json with the defaults unless it already exists.
func WriteDefaultSettings(configDir string) (bool, error) {
	fileName := GetSettingsPath(configDir)
	if _, err := os.Stat(fileName); err == nil {
		return false, nil
	}
	barr, err := json.MarshalIndent(DefaultSettings(), "", "  ")
	if err != nil {
		return false, err
	}
	err = os.WriteFile(fileName, append(barr, '\n'), 0644)
	if err != nil {
		return false, fmt.Errorf("writing %s: %w", fileName, err)
	}
	return true, nil
}
