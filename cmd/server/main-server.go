// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/wavetermdev/snipgallery/pkg/authn"
	"github.com/wavetermdev/snipgallery/pkg/blobstore"
	"github.com/wavetermdev/snipgallery/pkg/gallery"
	"github.com/wavetermdev/snipgallery/pkg/gevents"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/panichandler"
	"github.com/wavetermdev/snipgallery/pkg/sconfig"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
	"github.com/wavetermdev/snipgallery/pkg/web"
)

// these are set at build time
var SnipVersion = "0.0.0"
var BuildTime = "0"

var shutdownOnce sync.Once
var shutdownCh = make(chan struct{})

func doShutdown(reason string) {
	shutdownOnce.Do(func() {
		log.Printf("shutting down: %s\n", reason)
		close(shutdownCh)
	})
}

func installShutdownSignalHandlers() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		defer func() {
			panichandler.PanicHandlerNoError("installShutdownSignalHandlers", recover())
		}()
		for sig := range sigCh {
			doShutdown(fmt.Sprintf("got signal %v", sig))
			break
		}
	}()
}

func configWatcher(srvSettings *settingsHolder) {
	watcher := sconfig.GetWatcher()
	watcher.OnUpdate(func(update sconfig.FullConfigType) {
		srvSettings.set(update.Settings)
		log.Printf("[config] settings reloaded, isolation=%s\n", update.Settings.Isolation())
	})
	watcher.Start()
}

// settingsHolder is read on every request, the watcher swaps it on reload.
type settingsHolder struct {
	lock     sync.Mutex
	settings sconfig.SettingsType
}

func (h *settingsHolder) get() sconfig.SettingsType {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.settings
}

func (h *settingsHolder) set(settings sconfig.SettingsType) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.settings = settings
}

func seedBuiltins(svc *gallery.Service) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	count, err := svc.Seed(ctx)
	if err != nil {
		log.Printf("error seeding builtin components: %v\n", err)
		return
	}
	if count > 0 {
		log.Printf("seeded %d builtin components\n", count)
	}
}

func listenURL(listener string) string {
	host := listener
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/"
}

func main() {
	openFlag := flag.Bool("open", false, "open the gallery in a browser once the server is listening")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[snipsrv] ")
	snipbase.SnipVersion = SnipVersion
	snipbase.BuildTime = BuildTime

	err := snipbase.LoadDotEnv()
	if err != nil {
		log.Printf("[error] %v\n", err)
	}
	err = snipbase.CacheAndRemoveEnvVars()
	if err != nil {
		log.Printf("[error] %v\n", err)
		return
	}
	err = snipbase.EnsureSnipDataDir()
	if err != nil {
		log.Printf("error ensuring snipgallery home dir: %v\n", err)
		return
	}
	err = snipbase.EnsureSnipDBDir()
	if err != nil {
		log.Printf("error ensuring snipgallery db dir: %v\n", err)
		return
	}
	err = snipbase.EnsureSnipConfigDir()
	if err != nil {
		log.Printf("error ensuring snipgallery config dir: %v\n", err)
		return
	}
	err = snipbase.EnsureSnipBlobDir()
	if err != nil {
		log.Printf("error ensuring snipgallery blob dir: %v\n", err)
		return
	}
	snipLock, err := snipbase.AcquireSnipLock()
	if err != nil {
		log.Printf("error acquiring snip lock (another instance of snipsrv is likely running): %v\n", err)
		return
	}
	defer func() {
		err = snipLock.Close()
		if err != nil {
			log.Printf("error releasing snip lock: %v\n", err)
		}
	}()
	log.Printf("snipgallery version: %s (%s)\n", SnipVersion, BuildTime)
	log.Printf("snipgallery data dir: %s\n", snipbase.GetSnipDataDir())
	log.Printf("snipgallery config dir: %s\n", snipbase.GetSnipConfigDir())
	log.Printf("go runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	wrote, err := sconfig.WriteDefaultSettings(snipbase.GetSnipConfigDir())
	if err != nil {
		log.Printf("error writing default settings: %v\n", err)
	} else if wrote {
		log.Printf("wrote default settings to %s\n", sconfig.GetSettingsPath(snipbase.GetSnipConfigDir()))
	}
	srvSettings := &settingsHolder{settings: sconfig.GetWatcher().GetSettings()}
	configWatcher(srvSettings)
	defer sconfig.GetWatcher().Close()
	settings := srvSettings.get()

	err = gstore.InitGStore()
	if err != nil {
		log.Printf("error initializing gstore: %v\n", err)
		return
	}
	defer gstore.CloseGStore()

	initCtx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := blobstore.Open(initCtx, settings.BlobConfig(snipbase.GetSnipBlobDir()))
	cancelFn()
	if err != nil {
		log.Printf("error opening blob store: %v\n", err)
		return
	}
	log.Printf("blob store: %s\n", store.Name())
	avatars := blobstore.NewAvatarService(store)

	signer, err := authn.LoadOrCreateSigner(filepath.Join(snipbase.GetSnipDataDir(), authn.SessionKeyFile))
	if err != nil {
		log.Printf("error loading session key: %v\n", err)
		return
	}
	auth := authn.NewProvider(signer, authn.WithTokenTTL(settings.TokenTTL()))

	galleryService := gallery.NewService(avatars, gallery.WithScriptTimeout(settings.ScriptTimeout()), gallery.WithBroker(gevents.DefaultBroker))
	seedBuiltins(galleryService)

	server := web.NewServer(web.ServerOpts{
		Gallery:  galleryService,
		Auth:     auth,
		Avatars:  avatars,
		Settings: srvSettings.get,
		Broker:   gevents.DefaultBroker,
	})
	defer server.Close()

	listener, err := web.MakeTCPListener(settings.WebListen)
	if err != nil {
		log.Printf("error creating web listener: %v\n", err)
		return
	}
	installShutdownSignalHandlers()
	go func() {
		defer func() {
			panichandler.PanicHandlerNoError("RunWebServer", recover())
		}()
		err := server.RunWebServer(listener)
		if err != nil {
			doShutdown(fmt.Sprintf("web server error: %v", err))
		}
	}()
	if *openFlag {
		url := listenURL(listener.Addr().String())
		err = open.Run(url)
		if err != nil {
			log.Printf("error opening %s: %v\n", url, err)
		}
	}
	<-shutdownCh
	listener.Close()
	log.Printf("shutdown complete\n")
}
