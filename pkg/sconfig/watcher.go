// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package sconfig

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/wavetermdev/snipgallery/pkg/panichandler"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

var instance *Watcher
var once sync.Once

type UpdateHandler func(update FullConfigType)

// Watcher keeps the current FullConfig and reloads it when settings.json changes.
type Watcher struct {
	mutex      sync.Mutex
	configDir  string
	watcher    *fsnotify.Watcher
	fullConfig FullConfigType
	handlers   []UpdateHandler
}

// GetWatcher returns the singleton watcher for the default config dir.  it is
// never nil; without fsnotify it still serves the config read at startup.
func GetWatcher() *Watcher {
	once.Do(func() {
		instance = NewWatcher(snipbase.GetSnipConfigDir())
	})
	return instance
}

func NewWatcher(configDir string) *Watcher {
	w := &Watcher{configDir: configDir}
	w.fullConfig = ReadFullConfigFromDir(configDir)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[config] failed to create file watcher: %v\n", err)
		return w
	}
	err = fsw.Add(configDir)
	if err != nil {
		log.Printf("[config] failed to add path %s to watcher: %v\n", configDir, err)
		fsw.Close()
		return w
	}
	w.watcher = fsw
	return w
}

// OnUpdate registers fn to be called (on the watcher goroutine) after every reload.
func (w *Watcher) OnUpdate(fn UpdateHandler) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.handlers = append(w.handlers, fn)
}

func (w *Watcher) Start() {
	w.mutex.Lock()
	fsw := w.watcher
	for _, cerr := range w.fullConfig.ConfigErrors {
		log.Printf("[config] %s\n", cerr.String())
	}
	w.mutex.Unlock()
	if fsw == nil {
		return
	}
	log.Printf("[config] watching %s\n", w.configDir)
	go func() {
		defer func() {
			panichandler.PanicHandlerNoError("sconfig:Watcher", recover())
		}()
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Printf("[config] watcher error: %v\n", err)
			}
		}
	}()
}

func (w *Watcher) Close() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
		log.Printf("[config] file watcher closed\n")
	}
}

func (w *Watcher) GetFullConfig() FullConfigType {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.fullConfig
}

func (w *Watcher) GetSettings() SettingsType {
	return w.GetFullConfig().Settings
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if filepath.Base(filepath.ToSlash(event.Name)) != SettingsFile {
		return
	}
	w.Reload()
}

// Reload rereads settings.json and notifies handlers.
func (w *Watcher) Reload() FullConfigType {
	fullConfig := ReadFullConfigFromDir(w.configDir)
	w.mutex.Lock()
	w.fullConfig = fullConfig
	handlers := append([]UpdateHandler(nil), w.handlers...)
	w.mutex.Unlock()
	for _, cerr := range fullConfig.ConfigErrors {
		log.Printf("[config] %s\n", cerr.String())
	}
	for _, fn := range handlers {
		fn(fullConfig)
	}
	return fullConfig
}
