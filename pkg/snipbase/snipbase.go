// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package snipbase

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/alexflint/go-filemutex"
	"github.com/joho/godotenv"
)

// set by main-server.go
var SnipVersion = "0.0.0"
var BuildTime = "0"

const (
	SnipDataHomeEnvVar   = "SNIPGALLERY_DATA_HOME"
	SnipConfigHomeEnvVar = "SNIPGALLERY_CONFIG_HOME"
	SnipDevVarName       = "SNIPGALLERY_DEV"
	SnipListenVarName    = "SNIPGALLERY_LISTEN"
)

var DataHome_VarCache string   // caches SNIPGALLERY_DATA_HOME
var ConfigHome_VarCache string // caches SNIPGALLERY_CONFIG_HOME
var Dev_VarCache string        // caches SNIPGALLERY_DEV
var Listen_VarCache string     // caches SNIPGALLERY_LISTEN

const DefaultHomeDirName = ".snipgallery"
const SnipLockFile = "snip.lock"
const SnipDBDir = "db"
const SnipBlobDir = "blobs"
const ConfigDir = "config"
const DotEnvFile = ".env"

var baseLock = &sync.Mutex{}
var ensureDirCache = map[string]bool{}

type FDLock interface {
	Close() error
}

// LoadDotEnv loads a .env file from the working directory.  existing env vars win.
func LoadDotEnv() error {
	_, err := os.Stat(DotEnvFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	err = godotenv.Load(DotEnvFile)
	if err != nil {
		return fmt.Errorf("loading %s: %w", DotEnvFile, err)
	}
	return nil
}

func CacheAndRemoveEnvVars() error {
	DataHome_VarCache = os.Getenv(SnipDataHomeEnvVar)
	os.Unsetenv(SnipDataHomeEnvVar)
	if DataHome_VarCache == "" {
		DataHome_VarCache = filepath.Join(GetHomeDir(), DefaultHomeDirName)
	}
	ConfigHome_VarCache = os.Getenv(SnipConfigHomeEnvVar)
	os.Unsetenv(SnipConfigHomeEnvVar)
	if ConfigHome_VarCache == "" {
		ConfigHome_VarCache = filepath.Join(DataHome_VarCache, ConfigDir)
	}
	Dev_VarCache = os.Getenv(SnipDevVarName)
	os.Unsetenv(SnipDevVarName)
	Listen_VarCache = os.Getenv(SnipListenVarName)
	os.Unsetenv(SnipListenVarName)
	return nil
}

func IsDevMode() bool {
	return Dev_VarCache != ""
}

func GetSnipDataDir() string {
	return DataHome_VarCache
}

func GetSnipConfigDir() string {
	return ConfigHome_VarCache
}

func GetSnipDBDir() string {
	return filepath.Join(GetSnipDataDir(), SnipDBDir)
}

func GetSnipBlobDir() string {
	return filepath.Join(GetSnipDataDir(), SnipBlobDir)
}

func GetListenOverride() string {
	return Listen_VarCache
}

func GetHomeDir() string {
	homeVar, err := os.UserHomeDir()
	if err != nil {
		return "/"
	}
	return homeVar
}

func ExpandHomeDir(pathStr string) (string, error) {
	if pathStr != "~" && !strings.HasPrefix(pathStr, "~/") && (!strings.HasPrefix(pathStr, `~\`) || runtime.GOOS != "windows") {
		return filepath.Clean(pathStr), nil
	}
	homeDir := GetHomeDir()
	if pathStr == "~" {
		return homeDir, nil
	}
	expandedPath := filepath.Clean(filepath.Join(homeDir, pathStr[2:]))
	if !strings.HasPrefix(expandedPath, homeDir) {
		return "", fmt.Errorf("potential path traversal detected for path %s", pathStr)
	}
	return expandedPath, nil
}

func EnsureSnipDataDir() error {
	return CacheEnsureDir(GetSnipDataDir(), "sniphome", 0700, "snipgallery home directory")
}

func EnsureSnipDBDir() error {
	return CacheEnsureDir(GetSnipDBDir(), "snipdb", 0700, "snipgallery db directory")
}

func EnsureSnipConfigDir() error {
	return CacheEnsureDir(GetSnipConfigDir(), "snipconfig", 0700, "snipgallery config directory")
}

func EnsureSnipBlobDir() error {
	return CacheEnsureDir(GetSnipBlobDir(), "snipblobs", 0700, "snipgallery blob directory")
}

func CacheEnsureDir(dirName string, cacheKey string, perm os.FileMode, dirDesc string) error {
	baseLock.Lock()
	ok := ensureDirCache[cacheKey]
	baseLock.Unlock()
	if ok {
		return nil
	}
	err := TryMkdirs(dirName, perm, dirDesc)
	if err != nil {
		return err
	}
	baseLock.Lock()
	ensureDirCache[cacheKey] = true
	baseLock.Unlock()
	return nil
}

func TryMkdirs(dirName string, perm os.FileMode, dirDesc string) error {
	info, err := os.Stat(dirName)
	if errors.Is(err, fs.ErrNotExist) {
		err = os.MkdirAll(dirName, perm)
		if err != nil {
			return fmt.Errorf("cannot make %s %q: %w", dirDesc, dirName, err)
		}
		info, err = os.Stat(dirName)
	}
	if err != nil {
		return fmt.Errorf("error trying to stat %s: %w", dirDesc, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %q must be a directory", dirDesc, dirName)
	}
	return nil
}

// only one snipsrv may own a data dir at a time
func AcquireSnipLock() (FDLock, error) {
	lockFileName := filepath.Join(GetSnipDataDir(), SnipLockFile)
	log.Printf("[base] acquiring lock on %s\n", lockFileName)
	m, err := filemutex.New(lockFileName)
	if err != nil {
		return nil, fmt.Errorf("filemutex new error: %w", err)
	}
	err = m.TryLock()
	if err != nil {
		return nil, fmt.Errorf("filemutex trylock error: %w", err)
	}
	return m, nil
}
